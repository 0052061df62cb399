package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, with defaults applied
	LoadConfig() (*ConfigData, error)

	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server    ServerData    `json:"server" yaml:"server"`
	Earthdata EarthdataData `json:"earthdata" yaml:"earthdata"`
	Products  []ProductData `json:"products" yaml:"products"`
	Index     IndexData     `json:"index" yaml:"index"`
	Query     QueryData     `json:"query" yaml:"query"`
	Log       LogData       `json:"log" yaml:"log"`
}

// ServerData holds the REST server configuration
type ServerData struct {
	ListenAddr     string   `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port           int      `json:"port,omitempty" yaml:"port,omitempty"`
	Cert           string   `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key            string   `json:"key,omitempty" yaml:"key,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// DefaultPoints and DefaultRadiusMeters apply when a request omits them.
	DefaultPoints       int     `json:"default_points,omitempty" yaml:"default_points,omitempty"`
	DefaultRadiusMeters float64 `json:"default_radius_meters,omitempty" yaml:"default_radius_meters,omitempty"`
	MaxPoints           int     `json:"max_points,omitempty" yaml:"max_points,omitempty"`
}

// EarthdataData configures authentication, granule search and download
type EarthdataData struct {
	URSEndpoint string `json:"urs_endpoint,omitempty" yaml:"urs_endpoint,omitempty"`
	CMREndpoint string `json:"cmr_endpoint,omitempty" yaml:"cmr_endpoint,omitempty"`

	// A fixed temporal window (YYYY-MM-DD), or a lookback from now such as
	// "72h". Lookback wins when both are set.
	TemporalStart string `json:"temporal_start,omitempty" yaml:"temporal_start,omitempty"`
	TemporalEnd   string `json:"temporal_end,omitempty" yaml:"temporal_end,omitempty"`
	Lookback      string `json:"lookback,omitempty" yaml:"lookback,omitempty"`

	// BoundingBoxDegrees is the half-width of the search box around a point.
	BoundingBoxDegrees float64 `json:"bounding_box_degrees,omitempty" yaml:"bounding_box_degrees,omitempty"`

	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	Burst             int     `json:"burst,omitempty" yaml:"burst,omitempty"`
	Timeout           string  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	DownloadDir       string  `json:"download_dir,omitempty" yaml:"download_dir,omitempty"`

	Primary *CredentialData `json:"primary,omitempty" yaml:"primary,omitempty"`
	Backup  *CredentialData `json:"backup,omitempty" yaml:"backup,omitempty"`
}

// CredentialData is one Earthdata login
type CredentialData struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// ProductData describes one gridded product to query
type ProductData struct {
	ShortName string `json:"short_name" yaml:"short_name"`
	Version   string `json:"version" yaml:"version"`
	Pollutant string `json:"pollutant" yaml:"pollutant"`

	// Scale converts the product's column unit to molecules/cm²
	Scale     float64       `json:"scale,omitempty" yaml:"scale,omitempty"`
	Variables VariablesData `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// VariablesData names the variables read from a product. Group holds the
// NetCDF-4 group of the data variables; coordinates are read from the root.
// "/" selects the root group.
type VariablesData struct {
	Group        string `json:"group,omitempty" yaml:"group,omitempty"`
	Latitude     string `json:"latitude,omitempty" yaml:"latitude,omitempty"`
	Longitude    string `json:"longitude,omitempty" yaml:"longitude,omitempty"`
	Troposphere  string `json:"troposphere,omitempty" yaml:"troposphere,omitempty"`
	Uncertainty  string `json:"uncertainty,omitempty" yaml:"uncertainty,omitempty"`
	Stratosphere string `json:"stratosphere,omitempty" yaml:"stratosphere,omitempty"`
	QualityFlag  string `json:"quality_flag,omitempty" yaml:"quality_flag,omitempty"`
}

// IndexData configures the composite index
type IndexData struct {
	Locale string `json:"locale,omitempty" yaml:"locale,omitempty"`

	WeightNO2  float64 `json:"weight_no2,omitempty" yaml:"weight_no2,omitempty"`
	WeightHCHO float64 `json:"weight_hcho,omitempty" yaml:"weight_hcho,omitempty"`
	WeightO3   float64 `json:"weight_o3,omitempty" yaml:"weight_o3,omitempty"`

	StratosphereLow     float64 `json:"stratosphere_low,omitempty" yaml:"stratosphere_low,omitempty"`
	StratosphereHigh    float64 `json:"stratosphere_high,omitempty" yaml:"stratosphere_high,omitempty"`
	StratospherePenalty int     `json:"stratosphere_penalty,omitempty" yaml:"stratosphere_penalty,omitempty"`

	SynergyThreshold int     `json:"synergy_threshold,omitempty" yaml:"synergy_threshold,omitempty"`
	SynergyCount     int     `json:"synergy_count,omitempty" yaml:"synergy_count,omitempty"`
	SynergyFactor    float64 `json:"synergy_factor,omitempty" yaml:"synergy_factor,omitempty"`

	NO2  *StepTableData `json:"no2,omitempty" yaml:"no2,omitempty"`
	HCHO *StepTableData `json:"hcho,omitempty" yaml:"hcho,omitempty"`
	O3   *BandTableData `json:"o3,omitempty" yaml:"o3,omitempty"`
}

// StepTableData is an ascending threshold table
type StepTableData struct {
	Steps []StepData `json:"steps" yaml:"steps"`
	Above int        `json:"above" yaml:"above"`
}

type StepData struct {
	Below    float64 `json:"below" yaml:"below"`
	SubIndex int     `json:"sub_index" yaml:"sub_index"`
}

// BandTableData is a set of nested open intervals, innermost first
type BandTableData struct {
	Bands   []BandData `json:"bands" yaml:"bands"`
	Outside int        `json:"outside" yaml:"outside"`
}

type BandData struct {
	Low      float64 `json:"low" yaml:"low"`
	High     float64 `json:"high" yaml:"high"`
	SubIndex int     `json:"sub_index" yaml:"sub_index"`
}

// QueryData configures request fan-out
type QueryData struct {
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// LogData configures the optional rotating log file
type LogData struct {
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max_age_days,omitempty"`
}
