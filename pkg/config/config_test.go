package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/tempoaqi/pkg/aqi"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{EnvUsername, EnvPassword, EnvBackupUsername, EnvBackupPassword} {
		t.Setenv(v, "")
	}
}

func TestParseYAMLDefaults(t *testing.T) {
	clearCredentialEnv(t)

	c, err := ParseYAML([]byte("server:\n  port: 8080\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, DefaultListenAddr, c.Server.ListenAddr)
	assert.Equal(t, []string{"*"}, c.Server.AllowedOrigins)
	assert.Equal(t, 1, c.Server.DefaultPoints)
	assert.Equal(t, 10000.0, c.Server.DefaultRadiusMeters)
	assert.Equal(t, DefaultTemporalStart, c.Earthdata.TemporalStart)
	assert.Equal(t, DefaultTemporalEnd, c.Earthdata.TemporalEnd)
	assert.Equal(t, 0.05, c.Earthdata.BoundingBoxDegrees)
	assert.Equal(t, "es", c.Index.Locale)
	assert.Nil(t, c.Earthdata.Primary)

	require.Len(t, c.Products, 3)
	assert.Equal(t, "TEMPO_NO2_L3", c.Products[0].ShortName)
	assert.Equal(t, "TEMPO_O3TOT_L3", c.Products[2].ShortName)
	assert.Equal(t, DobsonUnit, c.Products[2].Scale)
	for _, p := range c.Products {
		assert.Equal(t, DefaultVariableGroup, p.Variables.Group, p.ShortName)
	}
}

func TestParseYAMLFull(t *testing.T) {
	clearCredentialEnv(t)

	doc := `
server:
  port: 9000
  allowed_origins: ["https://example.org"]
earthdata:
  lookback: 72h
  primary:
    username: alice
    password: secret
products:
  - short_name: TEMPO_NO2_L3
    version: V03
    pollutant: NO2
    variables:
      group: /
index:
  locale: en
  synergy_factor: 1.3
  no2:
    steps:
      - below: 1e15
        sub_index: 10
    above: 99
query:
  concurrency: 8
log:
  file: /var/log/tempoaqi.log
`
	c, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.org"}, c.Server.AllowedOrigins)
	assert.Equal(t, "72h", c.Earthdata.Lookback)
	assert.Empty(t, c.Earthdata.TemporalStart, "lookback replaces the fixed window")
	require.NotNil(t, c.Earthdata.Primary)
	assert.Equal(t, "alice", c.Earthdata.Primary.Username)
	require.Len(t, c.Products, 1)
	assert.Equal(t, 1.0, c.Products[0].Scale)
	assert.Equal(t, "/", c.Products[0].Variables.Group, "an explicit root group is kept")
	assert.Equal(t, 8, c.Query.Concurrency)
	assert.Equal(t, "/var/log/tempoaqi.log", c.Log.File)

	p := c.Index.Params()
	assert.Equal(t, aqi.English, p.Locale)
	assert.Equal(t, 1.3, p.SynergyFactor)
	assert.Equal(t, 150, p.SynergyThreshold)
	assert.Equal(t, 10, p.Tables.NO2.Lookup(5e14))
	assert.Equal(t, 99, p.Tables.NO2.Lookup(5e15))
	assert.Equal(t, aqi.DefaultTables().HCHO, p.Tables.HCHO)
}

func TestParseYAMLRejectsUnknownFields(t *testing.T) {
	_, err := ParseYAML([]byte("server:\n  prot: 8080\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearCredentialEnv(t)

	tests := []struct {
		name string
		doc  string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"cert without key", "server:\n  cert: /tmp/cert.pem\n"},
		{"bad lookback", "earthdata:\n  lookback: yesterday\n"},
		{"negative lookback", "earthdata:\n  lookback: -1h\n"},
		{"bad date", "earthdata:\n  temporal_start: 2024/02/20\n"},
		{"end before start", "earthdata:\n  temporal_start: 2024-03-01\n  temporal_end: 2024-02-01\n"},
		{"bad timeout", "earthdata:\n  timeout: soon\n"},
		{"unknown pollutant", "products:\n  - short_name: X\n    pollutant: SO2\n"},
		{"duplicate pollutant", "products:\n  - short_name: A\n    pollutant: NO2\n  - short_name: B\n    pollutant: NO2\n"},
		{"unknown locale", "index:\n  locale: fr\n"},
		{"negative weight", "index:\n  weight_o3: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestWindow(t *testing.T) {
	e := EarthdataData{TemporalStart: "2024-02-20", TemporalEnd: "2024-02-28"}
	start, end, err := e.Window(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 28, 23, 59, 59, 0, time.UTC), end)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e = EarthdataData{Lookback: "24h"}
	start, end, err = e.Window(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-24*time.Hour), start)
	assert.Equal(t, now, end)
}

func TestCredentialsFromEnv(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvPassword, "env-pass")
	t.Setenv(EnvBackupUsername, "backup-user")

	e := EarthdataData{Primary: &CredentialData{Username: "file-user", Password: "file-pass"}}
	ApplyCredentialsFromEnv(&e)

	assert.Equal(t, "env-user", e.Primary.Username)
	assert.Nil(t, e.Backup, "backup needs both username and password")
	assert.True(t, e.Primary.Valid())
	assert.False(t, (*CredentialData)(nil).Valid())
}

func TestYAMLProvider(t *testing.T) {
	clearCredentialEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query:\n  concurrency: 2\n"), 0o600))

	p := NewYAMLProvider(path)
	defer p.Close()

	c, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, c.Query.Concurrency)

	_, err = NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	clearCredentialEnv(t)

	dbPath := filepath.Join(t.TempDir(), "config.db")
	p, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.EnsureSchema())
	_, err = p.LoadConfig()
	assert.Error(t, err, "empty database has no default config")

	in, err := ParseYAML([]byte(`
server:
  port: 7000
  allowed_origins: ["https://a.example", "https://b.example"]
earthdata:
  primary:
    username: alice
    password: secret
index:
  locale: en
  o3:
    bands:
      - low: 1
        high: 2
        sub_index: 5
    outside: 6
query:
  concurrency: 3
`))
	require.NoError(t, err)
	require.NoError(t, p.SaveConfig(in))

	// Saving twice replaces rather than duplicates.
	require.NoError(t, p.SaveConfig(in))

	out, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSQLiteProviderPartialRows(t *testing.T) {
	clearCredentialEnv(t)

	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.EnsureSchema())
	_, err = p.db.Exec(`INSERT INTO configs (name) VALUES ('default')`)
	require.NoError(t, err)

	c, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, c.Server.Port)
	assert.Len(t, c.Products, 3)
}
