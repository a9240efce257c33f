// Package names resolves fund identifiers to display names.
//
// Names only label output; a missing name never affects computation.
package names

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Resolver looks up the display name of an entity key.
type Resolver interface {
	Lookup(entityKey string) (string, bool)
}

// Map is an in-memory Resolver.
type Map map[string]string

// Lookup implements Resolver.
func (m Map) Lookup(entityKey string) (string, bool) {
	name, ok := m[entityKey]
	return name, ok
}

// Label returns the resolved name of key, or key itself when r is nil or has no entry.
func Label(r Resolver, key string) string {
	if r == nil {
		return key
	}
	if name, ok := r.Lookup(key); ok && name != "" {
		return name
	}
	return key
}

// LoadRegistry builds a Map from the regulator's cadastral files, both
// ISO-8859-1 ';'-separated CSVs:
//   - hist (cad_fi_hist_denom_social.csv): current names are the rows with an
//     empty DT_FIM_DENOM_SOCIAL, keyed by CNPJ_FUNDO
//   - extract (extrato_fi.csv): DENOM_SOCIAL keyed by CNPJ_FUNDO_CLASSE, used
//     only for keys hist does not name
//
// Either reader may be nil.
func LoadRegistry(hist, extract io.Reader) (Map, error) {
	m := make(Map)

	if hist != nil {
		err := scan(hist, []string{"CNPJ_FUNDO", "DENOM_SOCIAL", "DT_FIM_DENOM_SOCIAL"}, func(row []string) {
			key, name, ended := row[0], row[1], row[2]
			if ended != "" || key == "" {
				return
			}
			if _, ok := m[key]; !ok {
				m[key] = name
			}
		})
		if err != nil {
			return nil, fmt.Errorf("name history: %w", err)
		}
	}

	if extract != nil {
		err := scan(extract, []string{"CNPJ_FUNDO_CLASSE", "DENOM_SOCIAL"}, func(row []string) {
			key, name := row[0], row[1]
			if key == "" {
				return
			}
			if _, ok := m[key]; !ok {
				m[key] = name
			}
		})
		if err != nil {
			return nil, fmt.Errorf("fund extract: %w", err)
		}
	}

	return m, nil
}

// LoadRegistryFiles opens the cadastral files by path. An empty path is skipped.
func LoadRegistryFiles(histPath, extractPath string) (Map, error) {
	var readers []io.Reader
	for _, p := range []string{histPath, extractPath} {
		if p == "" {
			readers = append(readers, nil)
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open name registry: %w", err)
		}
		defer f.Close()
		readers = append(readers, f)
	}
	return LoadRegistry(readers[0], readers[1])
}

// scan calls fn with the named columns of every data row.
func scan(r io.Reader, columns []string, fn func([]string)) error {
	cr := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(r))
	cr.Comma = ';'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		p, ok := pos[c]
		if !ok {
			return fmt.Errorf("missing column %s", c)
		}
		idx[i] = p
	}

	row := make([]string, len(columns))
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv: %w", err)
		}
		for i, p := range idx {
			row[i] = ""
			if p < len(rec) {
				row[i] = strings.TrimSpace(rec[p])
			}
		}
		fn(row)
	}
}
