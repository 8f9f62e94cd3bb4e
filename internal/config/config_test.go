package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
)

// requireInvalidArgs asserts that err is a CLIError carrying ExitInvalidArgs.
func requireInvalidArgs(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected CLIError, got %T", err)
	assert.Equal(t, model.ExitInvalidArgs, cliErr.Code)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, model.DefaultWorkers, cfg.Threads)
	assert.Equal(t, DefaultMarker, cfg.Marker)
	assert.Zero(t, cfg.Timeout)
	assert.Zero(t, cfg.MaxConcurrency)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_YAML verifies that every key of a YAML file is applied.
func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "full.yaml"))
	require.NoError(t, err)

	assert.Equal(t, &Config{
		Threads:        128,
		MaxConcurrency: 32,
		Timeout:        750 * time.Millisecond,
		Marker:         "*",
		JSON:           true,
		Verbose:        true,
		Network:        "backend",
	}, cfg)
}

// TestLoad_JSONC verifies comment and trailing-comma stripping, and that
// keys missing from the file keep their defaults while an explicit empty
// marker still applies.
func TestLoad_JSONC(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "partial.jsonc"))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Threads)
	assert.Equal(t, "", cfg.Marker)
	assert.Zero(t, cfg.Timeout)
	assert.False(t, cfg.JSON)
}

// TestLoad_EmptyFile verifies that an empty YAML file means "all defaults".
func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "empty.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantMsg string
	}{
		{name: "missing file", file: "does-not-exist.yaml", wantMsg: "failed to read config file"},
		{name: "unknown key", file: "unknown-key.yml", wantMsg: "failed to parse config file"},
		{name: "bad timeout", file: "bad-timeout.json", wantMsg: "invalid config file"},
		{name: "zero threads", file: "zero-threads.yaml", wantMsg: "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))
			requireInvalidArgs(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

// TestLoad_UnsupportedExtension writes a file with an unknown extension to a
// temp directory, since the extension check happens after the read.
func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ip-sniffer.toml")
	require.NoError(t, os.WriteFile(path, []byte("threads = 8\n"), 0o600))

	_, err := Load(path)
	requireInvalidArgs(t, err)
	assert.Contains(t, err.Error(), "unsupported config file extension")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "max workers", mutate: func(c *Config) { c.Threads = model.MaxWorkers }},
		{name: "too many workers", mutate: func(c *Config) { c.Threads = model.MaxWorkers + 1 }, wantErr: true},
		{name: "negative concurrency", mutate: func(c *Config) { c.MaxConcurrency = -1 }, wantErr: true},
		{name: "negative timeout", mutate: func(c *Config) { c.Timeout = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				requireInvalidArgs(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
