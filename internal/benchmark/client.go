package benchmark

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/normalize"
)

// ErrUnexpectedFormat is returned when a response is not an SGS series CSV.
var ErrUnexpectedFormat = errors.New("unexpected series format")

// Observation is one dated value of a series, in percent.
type Observation struct {
	Date  time.Time
	Value float64
}

// APIError represents a non-success response from the series service.
type APIError struct {
	SeriesID   int
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sgs series %d: status %d", e.SeriesID, e.StatusCode)
}

// Client downloads SGS series.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a series client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// SeriesURL returns the CSV download URL of a series.
func (c *Client) SeriesURL(seriesID int) string {
	return fmt.Sprintf("%s/bcdata.sgs.%d/dados?formato=csv", c.baseURL, seriesID)
}

// Series downloads the full history of a series. Rows whose date or value
// cannot be parsed are skipped.
func (c *Client) Series(ctx context.Context, seriesID int) ([]Observation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SeriesURL(seriesID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &APIError{SeriesID: seriesID, StatusCode: resp.StatusCode}
	}

	obs, skipped, err := parseSeries(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("series %d: %w", seriesID, err)
	}
	if skipped > 0 {
		c.logger.Debug("skipped unparseable observations", "series", seriesID, "rows", skipped)
	}
	return obs, nil
}

func parseSeries(r io.Reader) ([]Observation, int, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnexpectedFormat, err)
	}
	if len(header) < 2 || headerName(header[0]) != "data" || headerName(header[1]) != "valor" {
		return nil, 0, fmt.Errorf("%w: header %q", ErrUnexpectedFormat, header)
	}

	var (
		out     []Observation
		skipped int
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv: %w", err)
		}
		if len(rec) < 2 {
			skipped++
			continue
		}
		date, err := time.ParseInLocation("02/01/2006", strings.TrimSpace(rec[0]), time.UTC)
		if err != nil {
			skipped++
			continue
		}
		value, err := normalize.ParseNumber(rec[1])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, Observation{Date: date, Value: value.InexactFloat64()})
	}
	return out, skipped, nil
}

// headerName strips a UTF-8 BOM and stray quotes from a header cell.
func headerName(s string) string {
	return strings.ToLower(strings.Trim(s, "\ufeff\" \t"))
}
