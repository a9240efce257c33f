package partition

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go/reader"
	pqsource "github.com/xitongsys/parquet-go/source"

	"github.com/rickgao/fund-data/internal/model"
)

// ReadFile decodes every row of a partition artifact.
func ReadFile(path string) ([]model.QuoteRecord, error) {
	f, err := openLocal(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pr, err := reader.NewParquetReader(f, new(quoteRow), 4)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	rows := make([]quoteRow, n)
	if n > 0 {
		if err := pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}

	out := make([]model.QuoteRecord, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

// localFile adapts *os.File to the parquet-go file interface.
type localFile struct {
	*os.File
	path string
}

func openLocal(path string) (*localFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	return &localFile{File: f, path: path}, nil
}

func (f *localFile) Open(name string) (pqsource.ParquetFile, error) {
	if name == "" {
		name = f.path
	}
	return openLocal(name)
}

func (f *localFile) Create(name string) (pqsource.ParquetFile, error) {
	fh, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("create partition: %w", err)
	}
	return &localFile{File: fh, path: name}, nil
}
