package grid

import (
	"fmt"
	"math"

	"github.com/ctessum/cdf"
)

// NetCDFDataset exposes a NetCDF classic file as a Dataset. Classic files
// have no groups, so any group path in a variable name is ignored.
type NetCDFDataset struct {
	file  *cdf.File
	names map[string]bool
}

// OpenNetCDF reads the header of a NetCDF classic file. rw stays owned by
// the caller and must remain open while the dataset is in use.
func OpenNetCDF(rw cdf.ReaderWriterAt) (*NetCDFDataset, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("error opening NetCDF file: %w", err)
	}

	ds := &NetCDFDataset{
		file:  f,
		names: make(map[string]bool),
	}
	for _, v := range f.Header.Variables() {
		ds.names[v] = true
	}
	return ds, nil
}

// Variables lists the variables defined in the file.
func (d *NetCDFDataset) Variables() []string {
	return d.file.Header.Variables()
}

// HasVariable reports whether the file defines name.
func (d *NetCDFDataset) HasVariable(name string) bool {
	_, name = splitPath(name)
	return d.names[name]
}

// Dimensions returns the dimension names of a variable.
func (d *NetCDFDataset) Dimensions(name string) []string {
	_, name = splitPath(name)
	if !d.names[name] {
		return nil
	}
	return d.file.Header.Dimensions(name)
}

// Coordinate reads a whole coordinate variable.
func (d *NetCDFDataset) Coordinate(name string) ([]float64, []int, error) {
	_, name = splitPath(name)
	if !d.names[name] {
		return nil, nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}

	shape := d.file.Header.Lengths(name)
	n := 1
	for _, l := range shape {
		n *= l
	}

	r := d.file.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, nil, fmt.Errorf("error reading %s: %w", name, err)
	}

	values, err := toFloat64s(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return values, shape, nil
}

// Value reads one element of a variable. Elements equal to the variable's
// _FillValue come back as NaN.
func (d *NetCDFDataset) Value(name string, index []int) (value float64, err error) {
	_, name = splitPath(name)
	if !d.names[name] {
		return 0, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}

	shape := d.file.Header.Lengths(name)
	if len(index) != len(shape) {
		return 0, fmt.Errorf("variable %s has %d dimensions, got index %v", name, len(shape), index)
	}
	end := make([]int, len(index))
	for k, i := range index {
		if i < 0 || (shape[k] > 0 && i >= shape[k]) {
			return 0, fmt.Errorf("index %v out of range for %s%v", index, name, shape)
		}
		end[k] = i + 1
	}

	// The cdf reader panics on malformed hyperslabs; a bad variable must
	// not take the other quantities down with it.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error reading %s%v: %v", name, index, r)
		}
	}()

	r := d.file.Reader(name, index, end)
	buf := r.Zero(1)
	if _, err := r.Read(buf); err != nil {
		return 0, fmt.Errorf("error reading %s%v: %w", name, index, err)
	}

	values, err := toFloat64s(buf)
	if err != nil || len(values) == 0 {
		return 0, fmt.Errorf("variable %s: unsupported element type %T", name, buf)
	}
	value = values[0]

	if fill, ok := d.fillValue(name); ok && value == fill {
		return math.NaN(), nil
	}
	return value, nil
}

func (d *NetCDFDataset) fillValue(v string) (float64, bool) {
	attr := d.file.Header.GetAttribute(v, "_FillValue")
	if attr == nil {
		return 0, false
	}
	values, err := toFloat64s(attr)
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func toFloat64s(buf interface{}) ([]float64, error) {
	switch s := buf.(type) {
	case []float64:
		return s, nil
	case []float32:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(s))
		for i, v := range s {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported element type %T", buf)
}
