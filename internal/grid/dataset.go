// Package grid locates grid cells in gridded column products and extracts
// per-pollutant readings from them.
package grid

import (
	"errors"
	"strings"
)

var (
	// ErrMissingCoordinates is returned when a dataset lacks latitude or longitude.
	ErrMissingCoordinates = errors.New("dataset has no latitude/longitude coordinates")

	// ErrInvalidPrimaryValue is returned when the primary column is NaN,
	// a fill value, or not defined at all.
	ErrInvalidPrimaryValue = errors.New("primary column value is not a number")

	// ErrVariableNotFound is returned by a Dataset for unknown variable names.
	ErrVariableNotFound = errors.New("variable not found")

	// ErrUnsupportedGrid is returned for coordinate arrays that are neither
	// separable 1-D axes nor matching 2-D arrays.
	ErrUnsupportedGrid = errors.New("unsupported coordinate layout")
)

// Dataset is an already-open gridded product. Implementations are read-only
// views; opening and closing the underlying file belongs to the caller.
type Dataset interface {
	// Coordinate returns the flattened values and shape of a coordinate variable.
	Coordinate(name string) (values []float64, shape []int, err error)

	// HasVariable reports whether the dataset defines a variable.
	HasVariable(name string) bool

	// Dimensions returns the dimension names of a variable, outermost first.
	Dimensions(name string) []string

	// Value reads a single element. Fill values are returned as NaN.
	Value(name string, index []int) (float64, error)
}

// VariableNames maps the quantities we extract to the product's variable names.
// Data variables live in Group (empty or "/" for the root group); the
// coordinates are always read from the root.
type VariableNames struct {
	Group        string
	Latitude     string
	Longitude    string
	Troposphere  string
	Uncertainty  string
	Stratosphere string
	QualityFlag  string
}

// DefaultVariableNames returns the TEMPO L3 naming.
func DefaultVariableNames() VariableNames {
	return VariableNames{
		Latitude:     "latitude",
		Longitude:    "longitude",
		Troposphere:  "vertical_column_troposphere",
		Uncertainty:  "vertical_column_troposphere_uncertainty",
		Stratosphere: "vertical_column_stratosphere",
		QualityFlag:  "main_data_quality_flag",
	}
}

// data returns the path of a data variable inside the configured group.
func (n VariableNames) data(name string) string {
	group := strings.Trim(n.Group, "/")
	if name == "" || group == "" {
		return name
	}
	return group + "/" + name
}

// splitPath splits "group/sub/name" into its group path and variable name.
func splitPath(path string) (group, name string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return strings.Trim(path[:i], "/"), path[i+1:]
}

// WithDefaults fills empty names from DefaultVariableNames.
func (n VariableNames) WithDefaults() VariableNames {
	d := DefaultVariableNames()
	if n.Latitude == "" {
		n.Latitude = d.Latitude
	}
	if n.Longitude == "" {
		n.Longitude = d.Longitude
	}
	if n.Troposphere == "" {
		n.Troposphere = d.Troposphere
	}
	if n.Uncertainty == "" {
		n.Uncertainty = d.Uncertainty
	}
	if n.Stratosphere == "" {
		n.Stratosphere = d.Stratosphere
	}
	if n.QualityFlag == "" {
		n.QualityFlag = d.QualityFlag
	}
	return n
}
