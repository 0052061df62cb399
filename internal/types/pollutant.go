package types

import "math"

// Pollutant identifies one of the column products we fuse into the composite index.
type Pollutant string

const (
	NO2  Pollutant = "NO2"
	HCHO Pollutant = "HCHO"
	O3   Pollutant = "O3"
)

// Pollutants lists every supported pollutant in fusion order.
var Pollutants = []Pollutant{NO2, HCHO, O3}

// Valid reports whether p is one of the supported pollutants.
func (p Pollutant) Valid() bool {
	switch p {
	case NO2, HCHO, O3:
		return true
	}
	return false
}

// Reading is one pollutant's column measurement at one grid cell.
// Troposphere is always present; the other quantities are nil when the
// source product does not define them.
type Reading struct {
	Troposphere  float64  `json:"troposphere" msgpack:"troposphere"`
	Uncertainty  *float64 `json:"uncertainty,omitempty" msgpack:"uncertainty,omitempty"`
	Stratosphere *float64 `json:"stratosphere,omitempty" msgpack:"stratosphere,omitempty"`
	QualityFlag  *float64 `json:"quality_flag,omitempty" msgpack:"quality_flag,omitempty"`
}

// UncertaintyOrZero returns the uncertainty, or 0 when absent.
func (r Reading) UncertaintyOrZero() float64 { return valueOrZero(r.Uncertainty) }

// StratosphereOrZero returns the stratospheric column, or 0 when absent.
func (r Reading) StratosphereOrZero() float64 { return valueOrZero(r.Stratosphere) }

// QualityFlagOrZero returns the quality flag, or 0 (trusted) when absent.
func (r Reading) QualityFlagOrZero() float64 { return valueOrZero(r.QualityFlag) }

// Degraded reports whether the pixel's quality flag marks it as untrusted.
func (r Reading) Degraded() bool {
	return r.QualityFlagOrZero() > 0
}

// Valid reports whether the primary column holds a usable number.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Troposphere) && !math.IsInf(r.Troposphere, 0)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v, for building readings by hand.
func Float(v float64) *float64 {
	return &v
}

// PollutantSet maps each pollutant that produced a usable reading to that reading.
type PollutantSet map[Pollutant]Reading

// Has reports whether the set holds a reading for p.
func (s PollutantSet) Has(p Pollutant) bool {
	_, ok := s[p]
	return ok
}

// Scaled returns a copy of r with every column quantity multiplied by f.
// The quality flag is left untouched.
func (r Reading) Scaled(f float64) Reading {
	out := r
	out.Troposphere = r.Troposphere * f
	if r.Uncertainty != nil {
		out.Uncertainty = Float(*r.Uncertainty * f)
	}
	if r.Stratosphere != nil {
		out.Stratosphere = Float(*r.Stratosphere * f)
	}
	return out
}
