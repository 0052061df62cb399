package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{"EARTHDATA_USERNAME", "EARTHDATA_PASSWORD", "EARTHDATA_USERNAME_BACKUP", "EARTHDATA_PASSWORD_BACKUP"} {
		t.Setenv(v, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	c, err := loadConfig(filepath.Join(dir, "absent.yaml"), "yaml")
	require.NoError(t, err, "a missing YAML file means defaults")
	assert.Equal(t, 5000, c.Server.Port)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8081\n"), 0o600))
	c, err = loadConfig(path, "yaml")
	require.NoError(t, err)
	assert.Equal(t, 8081, c.Server.Port)

	_, err = loadConfig(path, "toml")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tempoaqi "))
}

func TestConvertCommand(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "config.db")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 9090\nquery:\n  concurrency: 6\n"), 0o600))

	out, err := execute(t, "config-convert", "--yaml", yamlPath, "--sqlite", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted")

	c, err := loadConfig(dbPath, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 6, c.Query.Concurrency)
	assert.Len(t, c.Products, 3, "defaults apply on load")

	_, err = execute(t, "config-convert", "--yaml", yamlPath, "--sqlite", dbPath)
	assert.Error(t, err, "refuses to overwrite without --force")

	_, err = execute(t, "config-convert", "--yaml", yamlPath, "--sqlite", dbPath, "--force")
	assert.NoError(t, err)
}

func TestProbeRejectsUnknownPollutant(t *testing.T) {
	_, err := execute(t, "probe", "--file", "x.nc", "--pollutant", "SO2")
	assert.Error(t, err)
}
