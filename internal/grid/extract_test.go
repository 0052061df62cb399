package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVar struct {
	dims  []string
	shape []int
	data  []float64
	err   error
}

// fakeDataset is an in-memory Dataset with row-major variables.
type fakeDataset struct {
	vars map[string]fakeVar
}

func (f *fakeDataset) Coordinate(name string) ([]float64, []int, error) {
	v, ok := f.vars[name]
	if !ok {
		return nil, nil, ErrVariableNotFound
	}
	return v.data, v.shape, v.err
}

func (f *fakeDataset) HasVariable(name string) bool {
	_, ok := f.vars[name]
	return ok
}

func (f *fakeDataset) Dimensions(name string) []string {
	return f.vars[name].dims
}

func (f *fakeDataset) Value(name string, index []int) (float64, error) {
	v, ok := f.vars[name]
	if !ok {
		return 0, ErrVariableNotFound
	}
	if v.err != nil {
		return 0, v.err
	}
	flat := 0
	for k, i := range index {
		flat = flat*v.shape[k] + i
	}
	return v.data[flat], nil
}

// separableDataset builds a 3x3 grid at latitudes 10/20/30 and longitudes
// 100/110/120, each cell holding base + 10*row + col.
func separableDataset(withTime bool) *fakeDataset {
	dims := []string{"latitude", "longitude"}
	shape := []int{3, 3}
	if withTime {
		dims = append([]string{"time"}, dims...)
		shape = append([]int{1}, shape...)
	}
	field := func(base float64) fakeVar {
		data := make([]float64, 9)
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				data[r*3+c] = base + float64(10*r+c)
			}
		}
		return fakeVar{dims: dims, shape: shape, data: data}
	}

	return &fakeDataset{vars: map[string]fakeVar{
		"latitude":                                {dims: []string{"latitude"}, shape: []int{3}, data: []float64{10, 20, 30}},
		"longitude":                               {dims: []string{"longitude"}, shape: []int{3}, data: []float64{100, 110, 120}},
		"vertical_column_troposphere":             field(3e15),
		"vertical_column_troposphere_uncertainty": field(3e14),
		"vertical_column_stratosphere":            field(2.5e15),
		"main_data_quality_flag":                  field(0),
	}}
}

func TestNearestCellSeparable(t *testing.T) {
	lats := []float64{10, 20, 30}
	lons := []float64{100, 110, 120}

	tests := []struct {
		name     string
		lat, lon float64
		row, col int
	}{
		{"interior", 21, 109, 1, 1},
		{"exact corner", 10, 100, 0, 0},
		{"beyond the grid", 50, 200, 2, 2},
		{"below the grid", -5, 0, 0, 0},
		{"ties pick the first index", 15, 105, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cell, err := NearestCell(lats, []int{3}, lons, []int{3}, tt.lat, tt.lon)
			require.NoError(t, err)
			assert.Equal(t, tt.row, cell.Row)
			assert.Equal(t, tt.col, cell.Col)
			assert.Equal(t, lats[tt.row], cell.Lat)
			assert.Equal(t, lons[tt.col], cell.Lon)
		})
	}
}

func TestNearestCellCurvilinear(t *testing.T) {
	// A 3x4 grid rotated so neither axis is separable.
	rows, cols := 3, 4
	lats := make([]float64, rows*cols)
	lons := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lats[r*cols+c] = 30 + float64(r) + 0.25*float64(c)
			lons[r*cols+c] = -100 + float64(c) - 0.25*float64(r)
		}
	}
	lats[0] = math.NaN()

	cell, err := NearestCell(lats, []int{rows, cols}, lons, []int{rows, cols}, 31.5, -98.2)
	require.NoError(t, err)
	assert.Equal(t, 1, cell.Row)
	assert.Equal(t, 2, cell.Col)
	assert.InDelta(t, 31.5, cell.Lat, 1e-9)
	assert.InDelta(t, -98.25, cell.Lon, 1e-9)
}

func TestNearestCellErrors(t *testing.T) {
	_, err := NearestCell(nil, nil, []float64{1}, []int{1}, 0, 0)
	assert.ErrorIs(t, err, ErrMissingCoordinates)

	_, err = NearestCell([]float64{1, 2}, []int{2}, []float64{1, 2, 3, 4}, []int{2, 2}, 0, 0)
	assert.ErrorIs(t, err, ErrUnsupportedGrid)

	nan := []float64{math.NaN(), math.NaN()}
	_, err = NearestCell(nan, []int{1, 2}, nan, []int{1, 2}, 0, 0)
	assert.ErrorIs(t, err, ErrMissingCoordinates)
}

func TestExtract(t *testing.T) {
	for _, withTime := range []bool{false, true} {
		ds := separableDataset(withTime)
		e := NewExtractor(DefaultVariableNames(), nil)

		r, err := e.Extract(ds, 21, 109)
		require.NoError(t, err, "time dimension %v", withTime)
		assert.Equal(t, 3e15+11, r.Troposphere)
		require.NotNil(t, r.Uncertainty)
		assert.Equal(t, 3e14+11, *r.Uncertainty)
		require.NotNil(t, r.Stratosphere)
		assert.Equal(t, 2.5e15+11, *r.Stratosphere)
		require.NotNil(t, r.QualityFlag)
		assert.Equal(t, 11.0, *r.QualityFlag)
	}
}

func TestExtractPartialReading(t *testing.T) {
	ds := separableDataset(true)
	delete(ds.vars, "vertical_column_stratosphere")
	delete(ds.vars, "main_data_quality_flag")

	r, err := NewExtractor(DefaultVariableNames(), nil).Extract(ds, 30, 120)
	require.NoError(t, err)
	assert.Equal(t, 3e15+22, r.Troposphere)
	assert.NotNil(t, r.Uncertainty)
	assert.Nil(t, r.Stratosphere)
	assert.Nil(t, r.QualityFlag)
}

func TestExtractMissingCoordinates(t *testing.T) {
	ds := separableDataset(false)
	delete(ds.vars, "longitude")

	_, err := NewExtractor(DefaultVariableNames(), nil).Extract(ds, 21, 109)
	assert.ErrorIs(t, err, ErrMissingCoordinates)
}

func TestExtractInvalidPrimary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ds *fakeDataset)
	}{
		{
			name: "NaN primary",
			mutate: func(ds *fakeDataset) {
				ds.vars["vertical_column_troposphere"].data[4] = math.NaN()
			},
		},
		{
			name: "primary not defined",
			mutate: func(ds *fakeDataset) {
				delete(ds.vars, "vertical_column_troposphere")
			},
		},
		{
			name: "primary unreadable",
			mutate: func(ds *fakeDataset) {
				v := ds.vars["vertical_column_troposphere"]
				v.err = errors.New("checksum mismatch")
				ds.vars["vertical_column_troposphere"] = v
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := separableDataset(false)
			tt.mutate(ds)
			_, err := NewExtractor(DefaultVariableNames(), nil).Extract(ds, 21, 109)
			assert.ErrorIs(t, err, ErrInvalidPrimaryValue)
		})
	}
}

func TestExtractIsolatesQuantityErrors(t *testing.T) {
	ds := separableDataset(false)
	v := ds.vars["vertical_column_troposphere_uncertainty"]
	v.err = errors.New("chunk decode failed")
	ds.vars["vertical_column_troposphere_uncertainty"] = v
	ds.vars["vertical_column_stratosphere"].data[4] = math.NaN()

	r, err := NewExtractor(DefaultVariableNames(), nil).Extract(ds, 21, 109)
	require.NoError(t, err)
	assert.Nil(t, r.Uncertainty)
	assert.Nil(t, r.Stratosphere)
	require.NotNil(t, r.QualityFlag)
	assert.Equal(t, 11.0, *r.QualityFlag)
}

func TestExtractCustomNames(t *testing.T) {
	ds := separableDataset(false)
	ds.vars["column_amount_o3"] = ds.vars["vertical_column_troposphere"]
	delete(ds.vars, "vertical_column_troposphere")

	names := VariableNames{Troposphere: "column_amount_o3"}
	r, err := NewExtractor(names, nil).Extract(ds, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, 3e15, r.Troposphere)
}

func TestExtractGroupedVariables(t *testing.T) {
	ds := separableDataset(true)
	for _, name := range []string{"vertical_column_troposphere", "main_data_quality_flag"} {
		ds.vars["product/"+name] = ds.vars[name]
		delete(ds.vars, name)
	}

	names := DefaultVariableNames()
	names.Group = "/product/"
	r, err := NewExtractor(names, nil).Extract(ds, 21, 109)
	require.NoError(t, err)
	assert.Equal(t, 3e15+11, r.Troposphere)
	require.NotNil(t, r.QualityFlag)
	assert.Equal(t, 11.0, *r.QualityFlag)
	assert.Nil(t, r.Uncertainty, "ungrouped variables are not read from the group")

	names.Group = "/"
	_, err = NewExtractor(names, nil).Extract(ds, 21, 109)
	assert.ErrorIs(t, err, ErrInvalidPrimaryValue)
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in, group, name string
	}{
		{"latitude", "", "latitude"},
		{"product/vertical_column", "product", "vertical_column"},
		{"/a/b/c", "a/b", "c"},
	}
	for _, tt := range tests {
		g, n := splitPath(tt.in)
		assert.Equal(t, tt.group, g, tt.in)
		assert.Equal(t, tt.name, n, tt.in)
	}
}
