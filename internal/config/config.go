package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/ip-sniffer/internal/model"
)

// DefaultMarker is the progress marker written once per open port.
const DefaultMarker = "."

// Config holds the scan settings that can come from a configuration file.
type Config struct {
	// Threads is the number of scan workers (the -j flag).
	Threads int

	// MaxConcurrency caps how many workers run at once. Zero means every
	// worker is started up front.
	MaxConcurrency int

	// Timeout is the connect timeout. Zero keeps the platform default.
	Timeout time.Duration

	// Marker is written to stdout once per open port. Empty disables
	// progress output.
	Marker string

	// JSON selects JSON output.
	JSON bool

	// Verbose enables debug logging on stderr.
	Verbose bool

	// Network is the Docker network whose address is scanned when the
	// target is a container.
	Network string
}

// fileConfig mirrors the on-disk layout. Every field is a pointer so that
// a key missing from the file leaves the default untouched, while an
// explicit zero value (for example marker: "") still applies.
type fileConfig struct {
	Threads        *int    `yaml:"threads" json:"threads"`
	MaxConcurrency *int    `yaml:"maxConcurrency" json:"maxConcurrency"`
	Timeout        *string `yaml:"timeout" json:"timeout"`
	Marker         *string `yaml:"marker" json:"marker"`
	JSON           *bool   `yaml:"json" json:"json"`
	Verbose        *bool   `yaml:"verbose" json:"verbose"`
	Network        *string `yaml:"network" json:"network"`
}

// Default returns the built-in settings used when neither a file nor a
// flag says otherwise.
func Default() *Config {
	return &Config{
		Threads: model.DefaultWorkers,
		Marker:  DefaultMarker,
	}
}

// Load reads the configuration file at path and returns it merged over
// Default. The format is chosen by extension. Unknown keys are rejected so
// that a misspelt key does not silently fall back to a default.
//
// All failures are returned as a CLIError with ExitInvalidArgs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, &fc)
	case ".json", ".jsonc":
		err = decodeJSON(data, &fc)
	default:
		return nil, model.NewCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("unsupported config file extension %q (use .yaml, .yml, .json or .jsonc)", ext))
	}
	if err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	cfg := Default()
	if err := fc.applyTo(cfg); err != nil {
		return nil, model.WrapCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("invalid config file %s", path), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeYAML parses YAML strictly. An empty document is not an error.
func decodeYAML(data []byte, fc *fileConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(fc); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// decodeJSON strips comments and trailing commas, then parses strictly.
func decodeJSON(data []byte, fc *fileConfig) error {
	clean := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(clean)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(clean))
	dec.DisallowUnknownFields()
	return dec.Decode(fc)
}

func (fc *fileConfig) applyTo(cfg *Config) error {
	if fc.Threads != nil {
		cfg.Threads = *fc.Threads
	}
	if fc.MaxConcurrency != nil {
		cfg.MaxConcurrency = *fc.MaxConcurrency
	}
	if fc.Timeout != nil {
		d, err := time.ParseDuration(*fc.Timeout)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if fc.Marker != nil {
		cfg.Marker = *fc.Marker
	}
	if fc.JSON != nil {
		cfg.JSON = *fc.JSON
	}
	if fc.Verbose != nil {
		cfg.Verbose = *fc.Verbose
	}
	if fc.Network != nil {
		cfg.Network = *fc.Network
	}
	return nil
}

// Validate checks the ranges that the command-line flags also enforce.
func (c *Config) Validate() error {
	if err := model.ValidateWorkers(c.Threads); err != nil {
		return err
	}
	if c.MaxConcurrency < 0 {
		return model.NewCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("max concurrency %d must not be negative", c.MaxConcurrency))
	}
	if c.Timeout < 0 {
		return model.NewCLIError(model.ExitInvalidArgs,
			fmt.Sprintf("timeout %s must not be negative", c.Timeout))
	}
	return nil
}
