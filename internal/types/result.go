package types

// SamplePoint is a WGS84 coordinate in degrees.
type SamplePoint struct {
	Lat float64 `json:"lat" msgpack:"lat"`
	Lon float64 `json:"lon" msgpack:"lon"`
}

// IndexResult is the composite index for one point. Value is nil when no
// usable score could be produced.
type IndexResult struct {
	Value    *int   `json:"aqi_satelital" msgpack:"aqi_satelital"`
	Category string `json:"categoria" msgpack:"categoria"`
	Color    string `json:"color" msgpack:"color"`
	// Reason explains a nil Value; empty when a score was produced.
	Reason string `json:"-" msgpack:"-"`
}

// HasValue reports whether a score was produced.
func (r IndexResult) HasValue() bool {
	return r.Value != nil
}

// QueryResult is the per-point output unit.
type QueryResult struct {
	Point      SamplePoint
	HasData    bool
	Pollutants PollutantSet
	Index      IndexResult
}

// NewQueryResult builds a result, deriving HasData from the pollutant set.
func NewQueryResult(p SamplePoint, set PollutantSet, idx IndexResult) QueryResult {
	if set == nil {
		set = PollutantSet{}
	}
	return QueryResult{
		Point:      p,
		HasData:    len(set) > 0,
		Pollutants: set,
		Index:      idx,
	}
}
