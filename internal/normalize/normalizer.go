package normalize

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rickgao/fund-data/internal/model"
)

// DefaultChunkSize is the number of rows delivered per chunk when none is given.
const DefaultChunkSize = 400_000

// Stats counts what a Reader has seen so far.
type Stats struct {
	Rows     int64 // Rows delivered
	Dropped  int64 // Rows with no entity key or no parseable date
	Warnings int64 // Cells nulled by coercion
}

// Reader streams normalized rows from one semicolon-separated source file.
type Reader struct {
	csv       *csv.Reader
	layout    *layout
	onWarning func(CoercionWarning)
	logger    *slog.Logger
	stats     Stats
}

// Option configures a Reader.
type Option func(*Reader)

// WithWarningHandler registers a callback for every coercion warning.
func WithWarningHandler(fn func(CoercionWarning)) Option {
	return func(r *Reader) {
		r.onWarning = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader reads the header row and resolves it against the alias table.
// It returns *SchemaError when a required field has no column.
func NewReader(src io.Reader, opts ...Option) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	r := &Reader{
		csv:    cr,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Missing: []string{FieldEntityKey.String(), FieldDate.String()}}
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	l, err := resolveLayout(header)
	if err != nil {
		return nil, err
	}
	r.layout = l

	if len(l.unknown) > 0 {
		r.logger.Debug("ignoring unrecognized columns", "columns", l.unknown)
	}

	return r, nil
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// ReadChunks delivers rows to fn in chunks of at most chunkSize until EOF.
// fn owns each chunk it receives. A non-positive chunkSize uses DefaultChunkSize.
func (r *Reader) ReadChunks(ctx context.Context, chunkSize int, fn func([]model.QuoteRecord) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	chunk := make([]model.QuoteRecord, 0, min(chunkSize, 4096))
	for {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}

		line, _ := r.csv.FieldPos(0)
		rec, ok := r.convert(line, record)
		if !ok {
			r.stats.Dropped++
			continue
		}
		chunk = append(chunk, rec)
		r.stats.Rows++

		if len(chunk) == chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
			chunk = make([]model.QuoteRecord, 0, min(chunkSize, 4096))
		}
	}

	if len(chunk) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(chunk)
	}
	return nil
}

// convert builds one QuoteRecord. It reports false when the row cannot be keyed.
func (r *Reader) convert(line int, record []string) (model.QuoteRecord, bool) {
	var rec model.QuoteRecord

	rec.EntityKey, _ = r.layout.cell(record, FieldEntityKey)
	if rec.EntityKey == "" {
		return rec, false
	}

	raw, _ := r.layout.cell(record, FieldDate)
	asOf, err := ParseDate(raw)
	if err != nil {
		r.logger.Debug("dropping row with unparseable date", "line", line, "value", raw)
		return rec, false
	}
	rec.AsOf = asOf

	rec.QuoteValue = r.float(line, record, FieldQuote)
	if rec.QuoteValue != nil && *rec.QuoteValue <= 0 {
		_, col := r.layout.cell(record, FieldQuote)
		r.warn(CoercionWarning{Line: line, Column: col, Value: fmt.Sprint(*rec.QuoteValue), Reason: "non-positive quote"})
		rec.QuoteValue = nil
	}
	rec.NetAssets = r.float(line, record, FieldNetAssets)
	rec.NetSubscriptions = r.float(line, record, FieldSubscriptions)
	rec.NetRedemptions = r.float(line, record, FieldRedemptions)

	if v, col := r.layout.cell(record, FieldHolders); v != "" {
		n, err := parseInt(v)
		if err != nil {
			r.warn(CoercionWarning{Line: line, Column: col, Value: v, Reason: err.Error()})
		}
		rec.HolderCount = n
	}

	return rec, true
}

func (r *Reader) float(line int, record []string, f Field) *float64 {
	v, col := r.layout.cell(record, f)
	if v == "" {
		return nil
	}
	n, err := parseFloat(v)
	if err != nil {
		r.warn(CoercionWarning{Line: line, Column: col, Value: v, Reason: "not a number"})
		return nil
	}
	return n
}

func (r *Reader) warn(w CoercionWarning) {
	r.stats.Warnings++
	if r.onWarning != nil {
		r.onWarning(w)
	}
}
