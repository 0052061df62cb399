package aqi

import (
	"math"

	"github.com/chrissnell/tempoaqi/internal/types"
)

const (
	// MaxIndex is the top of the composite scale.
	MaxIndex = 500

	// ReasonDegradedQuality marks a point rejected because a pixel was flagged.
	ReasonDegradedQuality = "degraded quality flag"
	// ReasonNoContributingPollutant marks a point with nothing to fuse.
	ReasonNoContributingPollutant = "no contributing pollutant"
)

// Weights are the per-pollutant weight factors applied on top of confidence.
type Weights struct {
	NO2  float64
	HCHO float64
	O3   float64
}

// Params configures the composite calculation.
type Params struct {
	Tables  Tables
	Weights Weights

	// NO2 stratospheric columns outside [StratosphereLow, StratosphereHigh]
	// add StratospherePenalty to the NO2 sub-index.
	StratosphereLow     float64
	StratosphereHigh    float64
	StratospherePenalty int

	// When at least SynergyCount sub-indices exceed SynergyThreshold the
	// fused value is multiplied by SynergyFactor.
	SynergyThreshold int
	SynergyCount     int
	SynergyFactor    float64

	Locale Locale
}

// DefaultParams returns the standard weighting.
func DefaultParams() Params {
	return Params{
		Tables: DefaultTables(),
		Weights: Weights{
			NO2:  0.5,
			HCHO: 0.35,
			O3:   0.15,
		},
		StratosphereLow:     2e15,
		StratosphereHigh:    4e15,
		StratospherePenalty: 15,
		SynergyThreshold:    150,
		SynergyCount:        2,
		SynergyFactor:       1.15,
		Locale:              Spanish,
	}
}

// Contribution is one pollutant's share of the composite.
type Contribution struct {
	Pollutant  types.Pollutant
	SubIndex   int
	Confidence float64
	Weight     float64
}

// Calculator computes composite indices. It holds no per-request state and
// is safe for concurrent use.
type Calculator struct {
	params Params
}

// NewCalculator returns a Calculator using p.
func NewCalculator(p Params) *Calculator {
	return &Calculator{params: p}
}

// Params returns the calculator's configuration.
func (c *Calculator) Params() Params {
	return c.params
}

// confidence is 1 - uncertainty/column, floored at 0. Non-positive columns
// and non-finite ratios have no confidence.
func confidence(r types.Reading) float64 {
	if !(r.Troposphere > 0) {
		return 0
	}
	c := 1 - r.UncertaintyOrZero()/r.Troposphere
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	return math.Max(0, c)
}

// Contributions returns the sub-index and weight of every pollutant present
// in set, in NO2, HCHO, O3 order. The quality gate is not applied.
func (c *Calculator) Contributions(set types.PollutantSet) []Contribution {
	var out []Contribution
	p := c.params

	if r, ok := set[types.NO2]; ok {
		sub := p.Tables.NO2.Lookup(r.Troposphere)
		strat := r.StratosphereOrZero()
		if strat < p.StratosphereLow || strat > p.StratosphereHigh {
			sub += p.StratospherePenalty
		}
		conf := confidence(r)
		out = append(out, Contribution{types.NO2, sub, conf, conf * p.Weights.NO2})
	}

	if r, ok := set[types.HCHO]; ok {
		conf := confidence(r)
		out = append(out, Contribution{types.HCHO, p.Tables.HCHO.Lookup(r.Troposphere), conf, conf * p.Weights.HCHO})
	}

	// Total-column ozone is not discounted by its uncertainty.
	if r, ok := set[types.O3]; ok {
		out = append(out, Contribution{types.O3, p.Tables.O3.Lookup(r.Troposphere), 1, p.Weights.O3})
	}

	return out
}

// Fuse returns the confidence-weighted mean of the contributions with the
// synergy boost applied, before clamping. ok is false when nothing
// contributed, every weight is zero, or the mean is not finite.
func (c *Calculator) Fuse(contribs []Contribution) (raw float64, ok bool) {
	if len(contribs) == 0 {
		return 0, false
	}

	var weighted, total float64
	elevated := 0
	for _, ct := range contribs {
		weighted += float64(ct.SubIndex) * ct.Weight
		total += ct.Weight
		if ct.SubIndex > c.params.SynergyThreshold {
			elevated++
		}
	}
	if total == 0 || math.IsNaN(total) {
		return 0, false
	}

	raw = weighted / total
	if elevated >= c.params.SynergyCount {
		raw *= c.params.SynergyFactor
	}
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, false
	}
	return raw, true
}

// Compute fuses set into a composite index. It never modifies set.
func (c *Calculator) Compute(set types.PollutantSet) types.IndexResult {
	for _, r := range set {
		if r.Degraded() {
			return c.none(ReasonDegradedQuality)
		}
	}

	raw, ok := c.Fuse(c.Contributions(set))
	if !ok {
		return c.none(ReasonNoContributingPollutant)
	}

	v := int(math.Trunc(math.Min(MaxIndex, math.Max(0, raw))))
	return types.IndexResult{
		Value:    &v,
		Category: Category(&v, c.params.Locale),
		Color:    Color(&v),
	}
}

func (c *Calculator) none(reason string) types.IndexResult {
	return types.IndexResult{
		Category: Category(nil, c.params.Locale),
		Color:    NoDataColor,
		Reason:   reason,
	}
}
