package app

import (
	"fmt"

	"github.com/chrissnell/tempoaqi/internal/grid"
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/internal/types"
	"github.com/chrissnell/tempoaqi/pkg/aqi"
)

// ProbeResult is the outcome of scoring a local granule at one point.
type ProbeResult struct {
	File      string            `json:"file"`
	Pollutant types.Pollutant   `json:"pollutant"`
	Point     types.SamplePoint `json:"point"`
	Cell      grid.Cell         `json:"cell"`
	Reading   types.Reading     `json:"reading"`
	Index     types.IndexResult `json:"index"`
	Reason    string            `json:"reason,omitempty"`
}

// Probe extracts the configured pollutant from a local NetCDF granule at
// (lat, lon) and scores it as a single-pollutant composite.
func (a *App) Probe(path string, pollutant types.Pollutant, lat, lon float64) (*ProbeResult, error) {
	products, err := Products(a.config.Products, a.logger)
	if err != nil {
		return nil, err
	}

	var product *query.Product
	for i := range products {
		if products[i].Pollutant == pollutant {
			product = &products[i]
			break
		}
	}
	if product == nil {
		return nil, fmt.Errorf("no product configured for pollutant %s", pollutant)
	}

	ds, err := grid.Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	cell, err := product.Extractor.Locate(ds, lat, lon)
	if err != nil {
		return nil, err
	}
	r, err := product.Extractor.Extract(ds, lat, lon)
	if err != nil {
		return nil, err
	}
	if product.Scale != 0 && product.Scale != 1 {
		r = r.Scaled(product.Scale)
	}

	idx := aqi.NewCalculator(a.config.Index.Params()).Compute(types.PollutantSet{pollutant: r})
	return &ProbeResult{
		File:      path,
		Pollutant: pollutant,
		Point:     types.SamplePoint{Lat: lat, Lon: lon},
		Cell:      cell,
		Reading:   r,
		Index:     idx,
		Reason:    idx.Reason,
	}, nil
}
