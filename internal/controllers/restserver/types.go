package restserver

import (
	"github.com/chrissnell/tempoaqi/internal/query"
	"github.com/chrissnell/tempoaqi/internal/types"
)

// Wire names follow the existing frontend, which speaks Spanish.

// TempoRequest is the body of a query
type TempoRequest struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Points int      `json:"num_coordenadas,omitempty"`
	Radius float64  `json:"radio,omitempty"`
}

// Coordinate is a point on the wire
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PointResult is the per-point entry of a response
type PointResult struct {
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
	HasData    bool               `json:"tiene_datos"`
	Pollutants types.PollutantSet `json:"contaminantes"`
	AQI        *int               `json:"aqi_satelital"`
	Category   string             `json:"categoria"`
	Color      string             `json:"color"`
}

// TempoResponse is the body of a successful query
type TempoResponse struct {
	Center         Coordinate    `json:"coordenada_central"`
	RadiusMeters   float64       `json:"radio_metros"`
	TotalPoints    int           `json:"total_puntos"`
	PointsWithData int           `json:"puntos_con_datos"`
	Results        []PointResult `json:"resultados"`
}

// HealthResponse is the body of /healthz
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func newTempoResponse(r *query.Response) TempoResponse {
	out := TempoResponse{
		Center:         Coordinate{Lat: r.Center.Lat, Lon: r.Center.Lon},
		RadiusMeters:   r.RadiusMeters,
		TotalPoints:    r.TotalPoints,
		PointsWithData: r.PointsWithData,
		Results:        make([]PointResult, len(r.Results)),
	}
	for i, res := range r.Results {
		out.Results[i] = PointResult{
			Lat:        res.Point.Lat,
			Lon:        res.Point.Lon,
			HasData:    res.HasData,
			Pollutants: res.Pollutants,
			AQI:        res.Index.Value,
			Category:   res.Index.Category,
			Color:      res.Index.Color,
		}
	}
	return out
}
