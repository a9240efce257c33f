package partition

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/rickgao/fund-data/internal/model"
)

const (
	filePrefix = "quotes_"
	fileExt    = ".parquet"
	tempSuffix = ".tmp"
)

var fileNamePattern = regexp.MustCompile(`^quotes_(\d{6})_([0-9A-HJKMNP-TV-Z]{26})\.parquet$`)

// Info describes one published partition.
type Info struct {
	Month      model.Month
	Generation string // ULID, sortable by creation time
	Path       string
	Rows       int // Known only right after Publish
	Duplicates int // Known only right after Publish
}

// FileName returns the artifact name for a month and generation.
func FileName(month model.Month, generation string) string {
	return filePrefix + month.String() + "_" + generation + fileExt
}

// parseFileName extracts month and generation from an artifact name.
func parseFileName(name string) (model.Month, string, bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return model.Month{}, "", false
	}
	month, err := model.ParseMonth(m[1])
	if err != nil {
		return model.Month{}, "", false
	}
	if _, err := ulid.ParseStrict(m[2]); err != nil {
		return model.Month{}, "", false
	}
	return month, m[2], true
}

// Dir is a directory of monthly partitions.
type Dir struct {
	path    string
	logger  *slog.Logger
	readDir func(string) ([]os.DirEntry, error)
}

// NewDir returns a Dir rooted at path. The directory is created on first publish.
func NewDir(path string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{path: path, logger: logger, readDir: os.ReadDir}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Begin starts a new partition for month.
func (d *Dir) Begin(month model.Month) *Builder {
	return &Builder{dir: d, month: month}
}

// scan returns every generation on disk grouped by month, each ascending.
func (d *Dir) scan() (map[model.Month][]Info, error) {
	entries, err := d.readDir(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read partition dir: %w", err)
	}

	byMonth := make(map[model.Month][]Info)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		month, gen, ok := parseFileName(e.Name())
		if !ok {
			continue
		}
		byMonth[month] = append(byMonth[month], Info{
			Month:      month,
			Generation: gen,
			Path:       filepath.Join(d.path, e.Name()),
		})
	}
	for _, gens := range byMonth {
		slices.SortFunc(gens, func(a, b Info) int { return strings.Compare(a.Generation, b.Generation) })
	}
	return byMonth, nil
}

// List returns the visible partition of every month, ascending by month.
func (d *Dir) List() ([]Info, error) {
	byMonth, err := d.scan()
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(byMonth))
	for _, gens := range byMonth {
		out = append(out, gens[len(gens)-1])
	}
	slices.SortFunc(out, func(a, b Info) int { return a.Month.Compare(b.Month) })
	return out, nil
}

// Latest returns the visible partition for month.
func (d *Dir) Latest(month model.Month) (Info, bool, error) {
	byMonth, err := d.scan()
	if err != nil {
		return Info{}, false, err
	}
	gens := byMonth[month]
	if len(gens) == 0 {
		return Info{}, false, nil
	}
	return gens[len(gens)-1], true, nil
}

// LatestMonth returns the most recent month with a partition, or nil if none.
func (d *Dir) LatestMonth() (*model.Month, error) {
	list, err := d.List()
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	m := list[len(list)-1].Month
	return &m, nil
}

// Prune removes leftover temporary files and superseded generations.
// It returns the number of files removed.
func (d *Dir) Prune() (int, error) {
	entries, err := d.readDir(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read partition dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "."+filePrefix) || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove temp file %s: %w", name, err)
		}
		removed++
	}

	byMonth, err := d.scan()
	if err != nil {
		return removed, err
	}
	for _, gens := range byMonth {
		n, err := d.removeGenerations(gens[:len(gens)-1])
		removed += n
		if err != nil {
			return removed, err
		}
	}

	if removed > 0 {
		d.logger.Info("pruned partition dir", "removed", removed)
	}
	return removed, nil
}

func (d *Dir) removeGenerations(gens []Info) (int, error) {
	removed := 0
	for _, g := range gens {
		if err := os.Remove(g.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove superseded %s: %w", filepath.Base(g.Path), err)
		}
		removed++
	}
	return removed, nil
}
