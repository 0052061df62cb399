package grid

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// NetCDF4Dataset exposes a NetCDF-4 (HDF5) file as a Dataset.
//
// Variable names may carry a group path, e.g.
// "product/vertical_column_troposphere". A name missing from its group is
// looked up in the root group, which is where TEMPO L3 keeps latitude and
// longitude.
type NetCDF4Dataset struct {
	root    api.Group
	groups  map[string]api.Group
	getters map[string]api.VarGetter
}

// OpenNetCDF4 opens a NetCDF-4 file. Close releases it.
func OpenNetCDF4(path string) (ds *NetCDF4Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error opening NetCDF-4 file: %v", r)
		}
	}()

	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening NetCDF-4 file: %w", err)
	}
	return newNetCDF4Dataset(g), nil
}

func newNetCDF4Dataset(root api.Group) *NetCDF4Dataset {
	return &NetCDF4Dataset{
		root:    root,
		groups:  map[string]api.Group{"": root},
		getters: make(map[string]api.VarGetter),
	}
}

// Close releases the file.
func (d *NetCDF4Dataset) Close() error {
	d.root.Close()
	return nil
}

// group resolves a slash-separated group path below the root.
func (d *NetCDF4Dataset) group(path string) (api.Group, error) {
	if g, ok := d.groups[path]; ok {
		return g, nil
	}

	g := d.root
	for _, part := range strings.Split(path, "/") {
		sub, err := g.GetGroup(part)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", path, err)
		}
		g = sub
	}
	d.groups[path] = g
	return g, nil
}

func (d *NetCDF4Dataset) getter(name string) (api.VarGetter, error) {
	if vg, ok := d.getters[name]; ok {
		return vg, nil
	}

	groupPath, varName := splitPath(name)
	if groupPath != "" {
		if g, err := d.group(groupPath); err == nil {
			if vg, err := g.GetVarGetter(varName); err == nil {
				d.getters[name] = vg
				return vg, nil
			}
		}
	}

	vg, err := d.root.GetVarGetter(varName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	d.getters[name] = vg
	return vg, nil
}

// HasVariable reports whether name resolves to a variable.
func (d *NetCDF4Dataset) HasVariable(name string) bool {
	_, err := d.getter(name)
	return err == nil
}

// Dimensions returns the dimension names of a variable.
func (d *NetCDF4Dataset) Dimensions(name string) []string {
	vg, err := d.getter(name)
	if err != nil {
		return nil
	}
	return vg.Dimensions()
}

// Coordinate reads a whole coordinate variable.
func (d *NetCDF4Dataset) Coordinate(name string) (values []float64, shape []int, err error) {
	vg, err := d.getter(name)
	if err != nil {
		return nil, nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error reading %s: %v", name, r)
		}
	}()

	raw, err := vg.Values()
	if err != nil {
		return nil, nil, fmt.Errorf("error reading %s: %w", name, err)
	}
	values, err = flatten(reflect.ValueOf(raw), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinate %s: %w", name, err)
	}
	return values, intShape(vg.Shape()), nil
}

// Value reads one element of a variable. Elements equal to the variable's
// _FillValue come back as NaN.
//
// The library slices along the outermost dimension only, so a single value
// of a (time, row, col) variable decodes the whole time step.
func (d *NetCDF4Dataset) Value(name string, index []int) (value float64, err error) {
	vg, err := d.getter(name)
	if err != nil {
		return 0, err
	}

	shape := intShape(vg.Shape())
	if len(index) == 0 || len(index) != len(shape) {
		return 0, fmt.Errorf("variable %s has %d dimensions, got index %v", name, len(shape), index)
	}
	for k, i := range index {
		if i < 0 || i >= shape[k] {
			return 0, fmt.Errorf("index %v out of range for %s%v", index, name, shape)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error reading %s%v: %v", name, index, r)
		}
	}()

	slab, err := vg.GetSlice(int64(index[0]), int64(index[0]+1))
	if err != nil {
		return 0, fmt.Errorf("error reading %s%v: %w", name, index, err)
	}

	v := reflect.ValueOf(slab)
	for _, i := range append([]int{0}, index[1:]...) {
		v = indirect(v)
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return 0, fmt.Errorf("variable %s: unexpected element type %s", name, v.Type())
		}
		v = v.Index(i)
	}
	value, err = number(v)
	if err != nil {
		return 0, fmt.Errorf("variable %s: %w", name, err)
	}

	if fill, ok := attributeNumber(vg.Attributes(), "_FillValue"); ok && value == fill {
		return math.NaN(), nil
	}
	return value, nil
}

func attributeNumber(attrs api.AttributeMap, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	raw, ok := attrs.Get(key)
	if !ok || raw == nil {
		return 0, false
	}
	values, err := flatten(reflect.ValueOf(raw), nil)
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

func intShape(s []int64) []int {
	out := make([]int, len(s))
	for i, l := range s {
		out[i] = int(l)
	}
	return out
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	return v
}

// flatten appends the numbers of a scalar or nested slice in row-major order.
func flatten(v reflect.Value, out []float64) ([]float64, error) {
	v = indirect(v)
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		var err error
		for i := 0; i < v.Len(); i++ {
			if out, err = flatten(v.Index(i), out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	f, err := number(v)
	if err != nil {
		return nil, err
	}
	return append(out, f), nil
}

func number(v reflect.Value) (float64, error) {
	v = indirect(v)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Invalid:
		return 0, fmt.Errorf("missing element")
	}
	return 0, fmt.Errorf("unsupported element type %s", v.Type())
}
