package source

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ErrNoCSV is returned when an archive has no CSV member.
var ErrNoCSV = errors.New("archive has no csv member")

// Archive is an opened monthly archive with its selected CSV member.
type Archive struct {
	Name string // Member name inside the zip
	Size uint64 // Uncompressed member size

	file *zip.File
}

// OpenArchive opens zip bytes and selects the first .csv member.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(f.Name), ".csv") {
			return &Archive{Name: f.Name, Size: f.UncompressedSize64, file: f}, nil
		}
	}

	return nil, ErrNoCSV
}

// Open returns the member's content decoded from ISO-8859-1 to UTF-8.
func (a *Archive) Open() (io.ReadCloser, error) {
	rc, err := a.file.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.Name, err)
	}
	return &decodedReader{
		Reader: charmap.ISO8859_1.NewDecoder().Reader(rc),
		closer: rc,
	}, nil
}

type decodedReader struct {
	io.Reader
	closer io.Closer
}

func (r *decodedReader) Close() error { return r.closer.Close() }
