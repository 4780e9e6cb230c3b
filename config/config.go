// Package config handles img2pdf configuration loading.
package config

import (
	"compress/zlib"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	// DPI is the resolution used to derive page size from pixel size.
	DPI float64 `yaml:"dpi"`
	// Compression is the zlib level for raw samples and content
	// streams: 0 stores them uncompressed, -1 is the library default,
	// -2 is Huffman-only.
	Compression   int  `yaml:"compression"`
	Deterministic bool `yaml:"deterministic"`
	Verify        bool `yaml:"verify"`
	// DedupeImages embeds repeated identical images once.
	DedupeImages bool         `yaml:"dedupe_images"`
	Output       string       `yaml:"output"`
	LogLevel     string       `yaml:"log_level"`
	Document     DocumentInfo `yaml:"document"`
	Limits       LimitsConfig `yaml:"limits"`
}

// DocumentInfo holds the metadata written to the Info dictionary and
// the XMP packet.
type DocumentInfo struct {
	Title    string   `yaml:"title"`
	Author   string   `yaml:"author"`
	Subject  string   `yaml:"subject"`
	Creator  string   `yaml:"creator"`
	Producer string   `yaml:"producer"`
	Keywords []string `yaml:"keywords"`
	Lang     string   `yaml:"lang"`
}

// LimitsConfig bounds decoded image size.
type LimitsConfig struct {
	MaxDimension int   `yaml:"max_dimension"`
	MaxPixels    int64 `yaml:"max_pixels"`
}

// Accepted compression levels, matching compress/zlib.
const (
	MinCompression = zlib.HuffmanOnly
	MaxCompression = zlib.BestCompression
)

// DefaultOutput is the file written when no output path is given.
const DefaultOutput = "img-to-pdf_output.pdf"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DPI:          300,
		Verify:       true,
		DedupeImages: true,
		Output:       DefaultOutput,
		LogLevel:     "info",
		Document: DocumentInfo{
			Producer: "img2pdf",
		},
		Limits: LimitsConfig{
			MaxDimension: 32768,
			MaxPixels:    64 << 20,
		},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if path is
// empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.DPI <= 0 {
		return fmt.Errorf("dpi must be positive, got %v", c.DPI)
	}
	if c.Compression < MinCompression || c.Compression > MaxCompression {
		return fmt.Errorf("compression must be between %d and %d, got %d", MinCompression, MaxCompression, c.Compression)
	}
	if c.Limits.MaxDimension < 0 || c.Limits.MaxPixels < 0 {
		return errors.New("limits must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
