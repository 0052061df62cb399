package grid

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnsupportedFormat is returned for files that are neither NetCDF classic
// nor NetCDF-4/HDF5.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var (
	classicMagic = []byte("CDF")
	hdf5Magic    = []byte("\x89HDF\r\n\x1a\n")
)

// Format names the on-disk encoding of a granule.
type Format string

const (
	FormatClassic Format = "netcdf-classic"
	FormatHDF5    Format = "netcdf4-hdf5"
	FormatUnknown Format = "unknown"
)

// DetectFormat inspects the leading bytes of a file.
func DetectFormat(r io.ReaderAt) (Format, error) {
	head := make([]byte, len(hdf5Magic))
	n, err := r.ReadAt(head, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("error reading file header: %w", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, classicMagic) && n >= 4 && (head[3] == 1 || head[3] == 2):
		return FormatClassic, nil
	case bytes.Equal(head, hdf5Magic):
		return FormatHDF5, nil
	}
	return FormatUnknown, nil
}

// FileDataset is a Dataset backed by an open file.
type FileDataset interface {
	Dataset
	io.Closer
}

// Open opens the granule at path with the reader matching its format.
func Open(path string) (FileDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	format, err := DetectFormat(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	switch format {
	case FormatClassic:
		ds, err := OpenNetCDF(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &classicFile{NetCDFDataset: ds, file: f}, nil
	case FormatHDF5:
		f.Close()
		return OpenNetCDF4(path)
	}

	f.Close()
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

type classicFile struct {
	*NetCDFDataset
	file *os.File
}

func (c *classicFile) Close() error {
	return c.file.Close()
}
