package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS server_configs (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	listen_addr TEXT NOT NULL DEFAULT '',
	port INTEGER NOT NULL DEFAULT 0,
	cert_file TEXT NOT NULL DEFAULT '',
	key_file TEXT NOT NULL DEFAULT '',
	allowed_origins TEXT NOT NULL DEFAULT '',
	default_points INTEGER NOT NULL DEFAULT 0,
	default_radius_meters REAL NOT NULL DEFAULT 0,
	max_points INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS earthdata_configs (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	urs_endpoint TEXT NOT NULL DEFAULT '',
	cmr_endpoint TEXT NOT NULL DEFAULT '',
	temporal_start TEXT NOT NULL DEFAULT '',
	temporal_end TEXT NOT NULL DEFAULT '',
	lookback TEXT NOT NULL DEFAULT '',
	bounding_box_degrees REAL NOT NULL DEFAULT 0,
	requests_per_second REAL NOT NULL DEFAULT 0,
	burst INTEGER NOT NULL DEFAULT 0,
	timeout TEXT NOT NULL DEFAULT '',
	download_dir TEXT NOT NULL DEFAULT '',
	primary_username TEXT,
	primary_password TEXT,
	backup_username TEXT,
	backup_password TEXT
);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	config_id INTEGER NOT NULL REFERENCES configs(id) ON DELETE CASCADE,
	short_name TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '',
	pollutant TEXT NOT NULL,
	scale REAL NOT NULL DEFAULT 1,
	variable_group TEXT NOT NULL DEFAULT '',
	latitude_var TEXT NOT NULL DEFAULT '',
	longitude_var TEXT NOT NULL DEFAULT '',
	troposphere_var TEXT NOT NULL DEFAULT '',
	uncertainty_var TEXT NOT NULL DEFAULT '',
	stratosphere_var TEXT NOT NULL DEFAULT '',
	quality_flag_var TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS index_configs (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	locale TEXT NOT NULL DEFAULT '',
	weight_no2 REAL NOT NULL DEFAULT 0,
	weight_hcho REAL NOT NULL DEFAULT 0,
	weight_o3 REAL NOT NULL DEFAULT 0,
	stratosphere_low REAL NOT NULL DEFAULT 0,
	stratosphere_high REAL NOT NULL DEFAULT 0,
	stratosphere_penalty INTEGER NOT NULL DEFAULT 0,
	synergy_threshold INTEGER NOT NULL DEFAULT 0,
	synergy_count INTEGER NOT NULL DEFAULT 0,
	synergy_factor REAL NOT NULL DEFAULT 0,
	tables_json TEXT
);

CREATE TABLE IF NOT EXISTS runtime_configs (
	config_id INTEGER PRIMARY KEY REFERENCES configs(id) ON DELETE CASCADE,
	concurrency INTEGER NOT NULL DEFAULT 0,
	log_file TEXT NOT NULL DEFAULT '',
	log_max_size_mb INTEGER NOT NULL DEFAULT 0,
	log_max_backups INTEGER NOT NULL DEFAULT 0,
	log_max_age_days INTEGER NOT NULL DEFAULT 0
);
`

const defaultConfigName = "default"

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// EnsureSchema creates the configuration tables if they do not exist
func (s *SQLiteProvider) EnsureSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	configID, err := s.configID()
	if err != nil {
		return nil, err
	}

	if err := s.loadServer(configID, &config.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if err := s.loadEarthdata(configID, &config.Earthdata); err != nil {
		return nil, fmt.Errorf("failed to load earthdata config: %w", err)
	}
	products, err := s.GetProducts(configID)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	config.Products = products
	if err := s.loadIndex(configID, &config.Index); err != nil {
		return nil, fmt.Errorf("failed to load index config: %w", err)
	}
	if err := s.loadRuntime(configID, config); err != nil {
		return nil, fmt.Errorf("failed to load runtime config: %w", err)
	}

	return finalize(config)
}

func (s *SQLiteProvider) configID() (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM configs WHERE name = ?`, defaultConfigName).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no %q configuration found in %s", defaultConfigName, s.dbPath)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query configs: %w", err)
	}
	return id, nil
}

// Rows that do not exist leave the section empty so defaults apply.
func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *SQLiteProvider) loadServer(configID int64, srv *ServerData) error {
	var origins string
	err := s.db.QueryRow(`
		SELECT listen_addr, port, cert_file, key_file, allowed_origins,
		       default_points, default_radius_meters, max_points
		FROM server_configs WHERE config_id = ?`, configID).Scan(
		&srv.ListenAddr, &srv.Port, &srv.Cert, &srv.Key, &origins,
		&srv.DefaultPoints, &srv.DefaultRadiusMeters, &srv.MaxPoints,
	)
	if err != nil {
		return ignoreNoRows(err)
	}
	srv.AllowedOrigins = splitList(origins)
	return nil
}

func (s *SQLiteProvider) loadEarthdata(configID int64, e *EarthdataData) error {
	var primaryUser, primaryPass, backupUser, backupPass sql.NullString
	err := s.db.QueryRow(`
		SELECT urs_endpoint, cmr_endpoint, temporal_start, temporal_end, lookback,
		       bounding_box_degrees, requests_per_second, burst, timeout, download_dir,
		       primary_username, primary_password, backup_username, backup_password
		FROM earthdata_configs WHERE config_id = ?`, configID).Scan(
		&e.URSEndpoint, &e.CMREndpoint, &e.TemporalStart, &e.TemporalEnd, &e.Lookback,
		&e.BoundingBoxDegrees, &e.RequestsPerSecond, &e.Burst, &e.Timeout, &e.DownloadDir,
		&primaryUser, &primaryPass, &backupUser, &backupPass,
	)
	if err != nil {
		return ignoreNoRows(err)
	}

	// Set credentials only when both halves are present
	if primaryUser.Valid && primaryPass.Valid {
		e.Primary = &CredentialData{Username: primaryUser.String, Password: primaryPass.String}
	}
	if backupUser.Valid && backupPass.Valid {
		e.Backup = &CredentialData{Username: backupUser.String, Password: backupPass.String}
	}
	return nil
}

// GetProducts returns product configurations from the database
func (s *SQLiteProvider) GetProducts(configID int64) ([]ProductData, error) {
	rows, err := s.db.Query(`
		SELECT short_name, version, pollutant, scale, variable_group,
		       latitude_var, longitude_var, troposphere_var,
		       uncertainty_var, stratosphere_var, quality_flag_var
		FROM products WHERE config_id = ?
		ORDER BY id`, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []ProductData
	for rows.Next() {
		var p ProductData
		v := &p.Variables
		if err := rows.Scan(
			&p.ShortName, &p.Version, &p.Pollutant, &p.Scale, &v.Group,
			&v.Latitude, &v.Longitude, &v.Troposphere,
			&v.Uncertainty, &v.Stratosphere, &v.QualityFlag,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// indexTables is the JSON shape of the optional lookup table overrides.
type indexTables struct {
	NO2  *StepTableData `json:"no2,omitempty"`
	HCHO *StepTableData `json:"hcho,omitempty"`
	O3   *BandTableData `json:"o3,omitempty"`
}

func (s *SQLiteProvider) loadIndex(configID int64, idx *IndexData) error {
	var tablesJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT locale, weight_no2, weight_hcho, weight_o3,
		       stratosphere_low, stratosphere_high, stratosphere_penalty,
		       synergy_threshold, synergy_count, synergy_factor, tables_json
		FROM index_configs WHERE config_id = ?`, configID).Scan(
		&idx.Locale, &idx.WeightNO2, &idx.WeightHCHO, &idx.WeightO3,
		&idx.StratosphereLow, &idx.StratosphereHigh, &idx.StratospherePenalty,
		&idx.SynergyThreshold, &idx.SynergyCount, &idx.SynergyFactor, &tablesJSON,
	)
	if err != nil {
		return ignoreNoRows(err)
	}

	if tablesJSON.Valid && tablesJSON.String != "" {
		var t indexTables
		if err := json.Unmarshal([]byte(tablesJSON.String), &t); err != nil {
			return fmt.Errorf("failed to decode index tables: %w", err)
		}
		idx.NO2, idx.HCHO, idx.O3 = t.NO2, t.HCHO, t.O3
	}
	return nil
}

func (s *SQLiteProvider) loadRuntime(configID int64, c *ConfigData) error {
	err := s.db.QueryRow(`
		SELECT concurrency, log_file, log_max_size_mb, log_max_backups, log_max_age_days
		FROM runtime_configs WHERE config_id = ?`, configID).Scan(
		&c.Query.Concurrency, &c.Log.File, &c.Log.MaxSizeMB, &c.Log.MaxBackups, &c.Log.MaxAgeDays,
	)
	return ignoreNoRows(err)
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	if err := s.EnsureSchema(); err != nil {
		return err
	}

	// Start transaction
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.insertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	// Clear existing data
	for _, table := range []string{"server_configs", "earthdata_configs", "products", "index_configs", "runtime_configs"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE config_id = ?`, configID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	srv := configData.Server
	if _, err := tx.Exec(`
		INSERT INTO server_configs (config_id, listen_addr, port, cert_file, key_file, allowed_origins,
		                            default_points, default_radius_meters, max_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, srv.ListenAddr, srv.Port, srv.Cert, srv.Key, strings.Join(srv.AllowedOrigins, ","),
		srv.DefaultPoints, srv.DefaultRadiusMeters, srv.MaxPoints,
	); err != nil {
		return fmt.Errorf("failed to insert server config: %w", err)
	}

	e := configData.Earthdata
	if _, err := tx.Exec(`
		INSERT INTO earthdata_configs (config_id, urs_endpoint, cmr_endpoint, temporal_start, temporal_end,
		                               lookback, bounding_box_degrees, requests_per_second, burst, timeout,
		                               download_dir, primary_username, primary_password,
		                               backup_username, backup_password)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, e.URSEndpoint, e.CMREndpoint, e.TemporalStart, e.TemporalEnd,
		e.Lookback, e.BoundingBoxDegrees, e.RequestsPerSecond, e.Burst, e.Timeout,
		e.DownloadDir, nullUsername(e.Primary), nullPassword(e.Primary),
		nullUsername(e.Backup), nullPassword(e.Backup),
	); err != nil {
		return fmt.Errorf("failed to insert earthdata config: %w", err)
	}

	for _, p := range configData.Products {
		v := p.Variables
		if _, err := tx.Exec(`
			INSERT INTO products (config_id, short_name, version, pollutant, scale, variable_group,
			                      latitude_var, longitude_var, troposphere_var,
			                      uncertainty_var, stratosphere_var, quality_flag_var)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			configID, p.ShortName, p.Version, p.Pollutant, p.Scale, v.Group,
			v.Latitude, v.Longitude, v.Troposphere, v.Uncertainty, v.Stratosphere, v.QualityFlag,
		); err != nil {
			return fmt.Errorf("failed to insert product %s: %w", p.ShortName, err)
		}
	}

	idx := configData.Index
	var tablesJSON sql.NullString
	if idx.NO2 != nil || idx.HCHO != nil || idx.O3 != nil {
		b, err := json.Marshal(indexTables{NO2: idx.NO2, HCHO: idx.HCHO, O3: idx.O3})
		if err != nil {
			return fmt.Errorf("failed to encode index tables: %w", err)
		}
		tablesJSON = sql.NullString{String: string(b), Valid: true}
	}
	if _, err := tx.Exec(`
		INSERT INTO index_configs (config_id, locale, weight_no2, weight_hcho, weight_o3,
		                           stratosphere_low, stratosphere_high, stratosphere_penalty,
		                           synergy_threshold, synergy_count, synergy_factor, tables_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, idx.Locale, idx.WeightNO2, idx.WeightHCHO, idx.WeightO3,
		idx.StratosphereLow, idx.StratosphereHigh, idx.StratospherePenalty,
		idx.SynergyThreshold, idx.SynergyCount, idx.SynergyFactor, tablesJSON,
	); err != nil {
		return fmt.Errorf("failed to insert index config: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO runtime_configs (config_id, concurrency, log_file, log_max_size_mb,
		                             log_max_backups, log_max_age_days)
		VALUES (?, ?, ?, ?, ?, ?)`,
		configID, configData.Query.Concurrency, configData.Log.File,
		configData.Log.MaxSizeMB, configData.Log.MaxBackups, configData.Log.MaxAgeDays,
	); err != nil {
		return fmt.Errorf("failed to insert runtime config: %w", err)
	}

	// Commit transaction
	return tx.Commit()
}

func (s *SQLiteProvider) insertConfig(tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO configs (name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	err := tx.QueryRow(`SELECT id FROM configs WHERE name = ?`, name).Scan(&id)
	return id, err
}

func nullUsername(c *CredentialData) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.Username, Valid: true}
}

func nullPassword(c *CredentialData) sql.NullString {
	if c == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: c.Password, Valid: true}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
