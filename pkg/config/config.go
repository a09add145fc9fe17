// Package config provides configuration loading and management for fractaldim.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for any out-of-range setting
var ErrInvalidConfig = errors.New("invalid configuration")

// Key layout constants. Each key interleaves three spatial fields and one
// occupancy field, so a scale level always consumes FieldsPerKey bits.
const (
	FieldsPerKey = 4
	MaxKeyWidth  = 32
)

// Analysis holds the box-counting parameters shared by the thresholder,
// the key encoder and the archive loader. Treat it as immutable once built.
type Analysis struct {
	// ArrayName is the name of the 4-D array inside the input archive
	ArrayName string `yaml:"arrayName"`

	// Cutoff is the intensity threshold; values below it are empty
	Cutoff int32 `yaml:"cutoff"`

	// BitsPerDim is the quantization depth of every key field
	BitsPerDim int `yaml:"bitsPerDim"`

	// KeyWidth is the total key width in bits, FieldsPerKey*BitsPerDim
	KeyWidth int `yaml:"keyWidth"`
}

// Levels returns the number of scale levels, 0..BitsPerDim inclusive
func (a Analysis) Levels() int {
	return a.BitsPerDim + 1
}

// Buckets returns the number of quantization buckets per axis
func (a Analysis) Buckets() int {
	return 1 << a.BitsPerDim
}

// OccupiedValue is the occupancy field value of an occupied voxel
func (a Analysis) OccupiedValue() uint8 {
	return uint8(a.Buckets() - 1)
}

// Config represents the application configuration loaded from YAML
type Config struct {
	Analysis Analysis `yaml:"analysis"`

	// Processing parameters
	Processing struct {
		// Parallel selects the data-parallel key generation strategy
		Parallel bool `yaml:"parallel"`

		// NumCores bounds the number of goroutines used by the parallel strategy
		NumCores int `yaml:"numCores"`

		// FlushEvery flushes the output after frames whose index is a multiple of it
		FlushEvery int `yaml:"flushEvery"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// File is the delimited text output path
		File string `yaml:"file"`

		// Separator is the single-byte column separator
		Separator string `yaml:"separator"`

		// Lacunarity appends the per-level lacunarity curve to each row
		Lacunarity bool `yaml:"lacunarity"`

		// SQLitePath optionally records results into a SQLite database
		SQLitePath string `yaml:"sqlitePath"`

		// PlotPath optionally renders the dimension series as a PNG chart
		PlotPath string `yaml:"plotPath"`

		// MaskDir optionally receives the central occupancy slices of every frame
		MaskDir string `yaml:"maskDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultAnalysis returns the default analysis parameters: array arr_0, cutoff 2, 8-bit fields
func DefaultAnalysis() Analysis {
	return Analysis{
		ArrayName:  "arr_0",
		Cutoff:     2,
		BitsPerDim: 8,
		KeyWidth:   32,
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis = DefaultAnalysis()

	cfg.Processing.Parallel = false
	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.FlushEvery = 10

	cfg.Output.File = "fractal_dimension.csv"
	cfg.Output.Separator = "\t"
	cfg.Output.Lacunarity = false
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the analysis parameters
func (a Analysis) Validate() error {
	if a.ArrayName == "" {
		return fmt.Errorf("%w: array name must not be empty", ErrInvalidConfig)
	}
	if a.BitsPerDim < 1 || a.BitsPerDim > MaxKeyWidth/FieldsPerKey {
		return fmt.Errorf("%w: bitsPerDim must be in [1, %d], got %d",
			ErrInvalidConfig, MaxKeyWidth/FieldsPerKey, a.BitsPerDim)
	}
	if a.KeyWidth != FieldsPerKey*a.BitsPerDim {
		return fmt.Errorf("%w: keyWidth %d does not match %d fields of %d bits",
			ErrInvalidConfig, a.KeyWidth, FieldsPerKey, a.BitsPerDim)
	}
	return nil
}

// Validate checks every section of the configuration
func (c *Config) Validate() error {
	if err := c.Analysis.Validate(); err != nil {
		return err
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("%w: numCores must be positive, got %d", ErrInvalidConfig, c.Processing.NumCores)
	}
	if c.Processing.FlushEvery < 1 {
		return fmt.Errorf("%w: flushEvery must be positive, got %d", ErrInvalidConfig, c.Processing.FlushEvery)
	}
	if c.Output.File == "" {
		return fmt.Errorf("%w: output file must not be empty", ErrInvalidConfig)
	}
	if _, err := ParseSeparator(c.Output.Separator); err != nil {
		return err
	}
	return nil
}

// ParseSeparator converts a separator string into a single byte.
// Multi-byte characters, quotes and line breaks are rejected.
func ParseSeparator(s string) (byte, error) {
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError {
		return 0, fmt.Errorf("%w: separator must be exactly one character, got %q", ErrInvalidConfig, s)
	}
	if size != 1 {
		return 0, fmt.Errorf("%w: separator %q does not encode to a single byte", ErrInvalidConfig, s)
	}
	switch r {
	case '"', '\r', '\n':
		return 0, fmt.Errorf("%w: separator %q is not allowed", ErrInvalidConfig, s)
	}
	return byte(r), nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
