package grid

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/chrissnell/tempoaqi/internal/types"
)

// Extractor reads pollutant readings from gridded datasets. It keeps no
// per-dataset state and is safe for concurrent use.
type Extractor struct {
	names  VariableNames
	logger *zap.SugaredLogger
}

// NewExtractor creates an extractor for products using the given variable names.
func NewExtractor(names VariableNames, logger *zap.SugaredLogger) *Extractor {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Extractor{
		names:  names.WithDefaults(),
		logger: logger,
	}
}

// Locate finds the grid cell nearest to (lat, lon).
func (e *Extractor) Locate(ds Dataset, lat, lon float64) (Cell, error) {
	if !ds.HasVariable(e.names.Latitude) || !ds.HasVariable(e.names.Longitude) {
		return Cell{}, ErrMissingCoordinates
	}

	lats, latShape, err := ds.Coordinate(e.names.Latitude)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %v", ErrMissingCoordinates, err)
	}
	lons, lonShape, err := ds.Coordinate(e.names.Longitude)
	if err != nil {
		return Cell{}, fmt.Errorf("%w: %v", ErrMissingCoordinates, err)
	}

	return NearestCell(lats, latShape, lons, lonShape, lat, lon)
}

// Extract returns the reading of the cell nearest to (lat, lon).
//
// Quantities the product does not define, or that fail to read, are left
// nil. A missing, NaN or fill-valued primary column discards the whole
// reading with ErrInvalidPrimaryValue.
func (e *Extractor) Extract(ds Dataset, lat, lon float64) (types.Reading, error) {
	cell, err := e.Locate(ds, lat, lon)
	if err != nil {
		return types.Reading{}, err
	}

	e.logger.Debugw("nearest grid cell",
		"query_lat", lat, "query_lon", lon,
		"row", cell.Row, "col", cell.Col,
		"cell_lat", cell.Lat, "cell_lon", cell.Lon)

	n := e.names
	primary := e.read(ds, n.data(n.Troposphere), cell)
	if primary == nil {
		return types.Reading{}, fmt.Errorf("%w: %s at (%d,%d)", ErrInvalidPrimaryValue, n.data(n.Troposphere), cell.Row, cell.Col)
	}

	return types.Reading{
		Troposphere:  *primary,
		Uncertainty:  e.read(ds, n.data(n.Uncertainty), cell),
		Stratosphere: e.read(ds, n.data(n.Stratosphere), cell),
		QualityFlag:  e.read(ds, n.data(n.QualityFlag), cell),
	}, nil
}

// read returns the value of name at cell, or nil when the variable is
// absent, unreadable or not a finite number.
func (e *Extractor) read(ds Dataset, name string, cell Cell) *float64 {
	if name == "" || !ds.HasVariable(name) {
		return nil
	}

	index, err := e.cellIndex(ds, name, cell)
	if err != nil {
		e.logger.Warnw("skipping variable", "variable", name, "error", err)
		return nil
	}

	v, err := ds.Value(name, index)
	if err != nil {
		e.logger.Warnw("error reading variable", "variable", name, "index", index, "error", err)
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// cellIndex builds the element index of cell within variable name. Dimensions
// shared with the latitude/longitude coordinates take the cell position; any
// other dimension (typically a leading time axis) is pinned to 0. When the
// dimension names do not line up with the coordinates, the trailing two
// dimensions are taken as (row, col).
func (e *Extractor) cellIndex(ds Dataset, name string, cell Cell) ([]int, error) {
	dims := ds.Dimensions(name)
	if len(dims) < 2 {
		return nil, fmt.Errorf("variable %s has %d dimensions, expected at least 2", name, len(dims))
	}

	latDims := ds.Dimensions(e.names.Latitude)
	lonDims := ds.Dimensions(e.names.Longitude)

	index := make([]int, len(dims))
	if len(latDims) == 1 && len(lonDims) == 1 {
		matched := 0
		for k, d := range dims {
			switch d {
			case latDims[0]:
				index[k] = cell.Row
				matched++
			case lonDims[0]:
				index[k] = cell.Col
				matched++
			}
		}
		if matched == 2 {
			return index, nil
		}
		index = make([]int, len(dims))
	}

	index[len(dims)-2] = cell.Row
	index[len(dims)-1] = cell.Col
	return index, nil
}
