package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for values left empty in the configuration source.
const (
	DefaultListenAddr    = "0.0.0.0"
	DefaultPort          = 5000
	DefaultPoints        = 1
	DefaultRadiusMeters  = 10000
	DefaultMaxPoints     = 100
	DefaultURSEndpoint   = "https://urs.earthdata.nasa.gov"
	DefaultCMREndpoint   = "https://cmr.earthdata.nasa.gov"
	DefaultTemporalStart = "2024-02-20"
	DefaultTemporalEnd   = "2024-02-28"
	DefaultBoundingBox   = 0.05
	DefaultRequestRate   = 5.0
	DefaultBurst         = 5
	DefaultTimeout       = "5m"
	DefaultConcurrency   = 4
	DefaultVariableGroup = "product"

	// DobsonUnit is one DU expressed in molecules/cm².
	DobsonUnit = 2.6867e16
)

// DefaultProducts returns the TEMPO L3 products queried when none are configured.
func DefaultProducts() []ProductData {
	return []ProductData{
		{
			ShortName: "TEMPO_NO2_L3",
			Version:   "V03",
			Pollutant: "NO2",
			Scale:     1,
		},
		{
			ShortName: "TEMPO_HCHO_L3",
			Version:   "V03",
			Pollutant: "HCHO",
			Scale:     1,
			Variables: VariablesData{
				Troposphere: "vertical_column",
				Uncertainty: "vertical_column_uncertainty",
			},
		},
		{
			ShortName: "TEMPO_O3TOT_L3",
			Version:   "V03",
			Pollutant: "O3",
			Scale:     DobsonUnit,
			Variables: VariablesData{
				Troposphere: "column_amount_o3",
			},
		},
	}
}

// ApplyDefaults fills every empty field of c with its default.
func ApplyDefaults(c *ConfigData) {
	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.DefaultPoints == 0 {
		s.DefaultPoints = DefaultPoints
	}
	if s.DefaultRadiusMeters == 0 {
		s.DefaultRadiusMeters = DefaultRadiusMeters
	}
	if s.MaxPoints == 0 {
		s.MaxPoints = DefaultMaxPoints
	}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = []string{"*"}
	}

	e := &c.Earthdata
	if e.URSEndpoint == "" {
		e.URSEndpoint = DefaultURSEndpoint
	}
	if e.CMREndpoint == "" {
		e.CMREndpoint = DefaultCMREndpoint
	}
	if e.Lookback == "" {
		if e.TemporalStart == "" {
			e.TemporalStart = DefaultTemporalStart
		}
		if e.TemporalEnd == "" {
			e.TemporalEnd = DefaultTemporalEnd
		}
	}
	if e.BoundingBoxDegrees == 0 {
		e.BoundingBoxDegrees = DefaultBoundingBox
	}
	if e.RequestsPerSecond == 0 {
		e.RequestsPerSecond = DefaultRequestRate
	}
	if e.Burst == 0 {
		e.Burst = DefaultBurst
	}
	if e.Timeout == "" {
		e.Timeout = DefaultTimeout
	}

	if len(c.Products) == 0 {
		c.Products = DefaultProducts()
	}
	for i := range c.Products {
		if c.Products[i].Scale == 0 {
			c.Products[i].Scale = 1
		}
		if c.Products[i].Variables.Group == "" {
			c.Products[i].Variables.Group = DefaultVariableGroup
		}
	}

	if c.Index.Locale == "" {
		c.Index.Locale = "es"
	}
	if c.Query.Concurrency == 0 {
		c.Query.Concurrency = DefaultConcurrency
	}
}

// Validate checks a configuration after defaults have been applied.
func Validate(c *ConfigData) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		return fmt.Errorf("server cert and key must be set together")
	}
	if c.Server.DefaultRadiusMeters < 0 {
		return fmt.Errorf("default radius must not be negative")
	}

	if _, _, err := c.Earthdata.Window(time.Now()); err != nil {
		return err
	}
	if _, err := time.ParseDuration(c.Earthdata.Timeout); err != nil {
		return fmt.Errorf("invalid earthdata timeout %q: %w", c.Earthdata.Timeout, err)
	}
	if c.Earthdata.BoundingBoxDegrees < 0 {
		return fmt.Errorf("bounding box must not be negative")
	}

	seen := make(map[string]bool)
	for _, p := range c.Products {
		if p.ShortName == "" {
			return fmt.Errorf("product without short_name")
		}
		switch p.Pollutant {
		case "NO2", "HCHO", "O3":
		default:
			return fmt.Errorf("product %s: unknown pollutant %q", p.ShortName, p.Pollutant)
		}
		if seen[p.Pollutant] {
			return fmt.Errorf("product %s: pollutant %s configured twice", p.ShortName, p.Pollutant)
		}
		seen[p.Pollutant] = true
	}

	switch strings.ToLower(c.Index.Locale) {
	case "es", "en":
	default:
		return fmt.Errorf("unsupported locale %q", c.Index.Locale)
	}
	if c.Index.WeightNO2 < 0 || c.Index.WeightHCHO < 0 || c.Index.WeightO3 < 0 {
		return fmt.Errorf("index weights must not be negative")
	}
	if c.Query.Concurrency < 1 {
		return fmt.Errorf("query concurrency must be at least 1")
	}
	return nil
}

// Window resolves the temporal search window. A lookback is measured back
// from now; otherwise the fixed dates are used and the end day is inclusive.
func (e EarthdataData) Window(now time.Time) (start, end time.Time, err error) {
	if e.Lookback != "" {
		d, err := time.ParseDuration(e.Lookback)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid lookback %q: %w", e.Lookback, err)
		}
		if d <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("lookback must be positive")
		}
		now = now.UTC()
		return now.Add(-d), now, nil
	}

	start, err = time.Parse(time.DateOnly, e.TemporalStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid temporal_start %q: %w", e.TemporalStart, err)
	}
	end, err = time.Parse(time.DateOnly, e.TemporalEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid temporal_end %q: %w", e.TemporalEnd, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("temporal_end %s is before temporal_start %s", e.TemporalEnd, e.TemporalStart)
	}
	return start, end.Add(24*time.Hour - time.Second), nil
}

// TimeoutDuration returns the parsed HTTP timeout.
func (e EarthdataData) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0
	}
	return d
}
