// Package config provides unified configuration loading for smartpdf.
// Supports YAML, TOML and JSON files, SMART_PDF_MD_* environment variables,
// and programmatic overrides applied by the CLI.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spherical/smartpdf/internal/domain"
	"github.com/spherical/smartpdf/internal/observability"
)

// Config holds all configuration for a conversion run. It is built once at
// startup and passed down explicitly.
type Config struct {
	Input string `yaml:"input"`
	Slice int    `yaml:"slice"`

	Mode             string `yaml:"mode"`
	Engine           string `yaml:"engine"`
	EngineTextual    string `yaml:"engine_textual"`
	EngineNonTextual string `yaml:"engine_non_textual"`
	HeavyEngine      string `yaml:"heavy_engine"`

	OutputDir    string `yaml:"outdir"`
	OutputFormat string `yaml:"output_format"`
	Images       bool   `yaml:"images"`

	MinChars   int     `yaml:"min_chars"`
	MinRatio   float64 `yaml:"min_ratio"`
	MinSlice   int     `yaml:"min_slice"`
	LowResDPI  int     `yaml:"lowres_dpi"`
	HighResDPI int     `yaml:"highres_dpi"`

	Mock              bool `yaml:"mock"`
	MockFail          bool `yaml:"mock_fail"`
	MockFailIfSliceGT int  `yaml:"mock_fail_if_slice_gt"`

	DryRun   bool     `yaml:"dry_run"`
	Progress bool     `yaml:"progress"`
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
	Resume   bool     `yaml:"resume"`

	Workers       int           `yaml:"workers"`
	HeavyTimeout  time.Duration `yaml:"heavy_timeout"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	RetryMaxDelay time.Duration `yaml:"retry_max_delay"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
	LogFile  string `yaml:"log_file"`

	Engines EnginesConfig `yaml:"engines"`
	Cache   CacheConfig   `yaml:"cache"`
	Ledger  LedgerConfig  `yaml:"ledger"`
}

// EnginesConfig holds per-engine settings.
type EnginesConfig struct {
	Marker    CommandConfig   `yaml:"marker"`
	Poppler   CommandConfig   `yaml:"poppler"`
	OCRmyPDF  CommandConfig   `yaml:"ocrmypdf"`
	Tesseract TesseractConfig `yaml:"tesseract"`
	Vision    VisionConfig    `yaml:"vision"`
}

// CommandConfig configures an engine backed by an external executable.
type CommandConfig struct {
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	Language string   `yaml:"language"`
}

// TesseractConfig holds OCR settings.
type TesseractConfig struct {
	Language string `yaml:"language"`
}

// VisionConfig holds OpenRouter vision model settings.
type VisionConfig struct {
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Endpoint    string `yaml:"endpoint"`
	JPEGQuality int    `yaml:"jpeg_quality"`
	MaxRetries  int    `yaml:"max_retries"`
}

// CacheConfig holds classification cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// LedgerConfig holds run ledger settings.
type LedgerConfig struct {
	Driver   string `yaml:"driver"` // none, sqlite or postgres
	Path     string `yaml:"path"`
	Postgres string `yaml:"postgres_dsn"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Mode:          string(domain.ModeAuto),
		HeavyEngine:   "marker",
		OutputFormat:  string(domain.FormatMarkdown),
		MinChars:      100,
		MinRatio:      0.2,
		MinSlice:      5,
		LowResDPI:     96,
		HighResDPI:    120,
		Workers:       1,
		HeavyTimeout:  30 * time.Minute,
		RetryMaxDelay: 30 * time.Second,
		LogLevel:      "info",
		Engines: EnginesConfig{
			Marker:    CommandConfig{Command: "marker_single"},
			Poppler:   CommandConfig{Command: "pdftohtml"},
			OCRmyPDF:  CommandConfig{Command: "ocrmypdf", Language: "eng"},
			Tesseract: TesseractConfig{Language: "eng"},
			Vision: VisionConfig{
				Model:       "google/gemini-2.5-flash-preview-09-2025",
				Endpoint:    "https://openrouter.ai/api/v1/chat/completions",
				JPEGQuality: 85,
				MaxRetries:  3,
			},
		},
		Cache: CacheConfig{
			Driver:     "none",
			TTL:        24 * time.Hour,
			MaxEntries: 10000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "smartpdf:",
			},
		},
		Ledger: LedgerConfig{
			Driver: "none",
			Path:   "smartpdf-ledger.db",
		},
	}
}

// Load builds a configuration from defaults, an optional file, and the
// process environment. Validation is left to the caller so that CLI flags can
// be applied first.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("load config file %s", path), err)
		}
	}

	if err := applyEnvOverrides(cfg, osLookup); err != nil {
		return nil, domain.ConfigError("apply environment overrides", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := domain.ParseMode(c.Mode); err != nil {
		return domain.ConfigError("invalid mode", err)
	}
	if _, err := domain.ParseOutputFormat(c.OutputFormat); err != nil {
		return domain.ConfigError("invalid output format", err)
	}
	if c.MinChars < 0 {
		return domain.ConfigError(fmt.Sprintf("min_chars must be >= 0, got %d", c.MinChars), nil)
	}
	if c.MinRatio < 0 || c.MinRatio > 1 {
		return domain.ConfigError(fmt.Sprintf("min_ratio must be between 0 and 1, got %g", c.MinRatio), nil)
	}
	if c.Slice < 0 {
		return domain.ConfigError(fmt.Sprintf("slice must be positive, got %d", c.Slice), nil)
	}
	if c.MinSlice < 1 {
		return domain.ConfigError(fmt.Sprintf("min_slice must be >= 1, got %d", c.MinSlice), nil)
	}
	if c.LowResDPI < 1 || c.HighResDPI < 1 {
		return domain.ConfigError("dpi values must be positive", nil)
	}
	if c.Workers < 1 {
		return domain.ConfigError(fmt.Sprintf("workers must be >= 1, got %d", c.Workers), nil)
	}
	if c.HeavyTimeout < 0 || c.RetryDelay < 0 || c.RetryMaxDelay < 0 {
		return domain.ConfigError("durations must not be negative", nil)
	}
	if c.HeavyEngine == "" {
		return domain.ConfigError("heavy_engine must not be empty", nil)
	}
	if !observability.ValidLevel(c.LogLevel) {
		return domain.ConfigError(fmt.Sprintf("invalid log level: %s", c.LogLevel), nil)
	}

	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return domain.ConfigError(fmt.Sprintf("invalid cache driver: %s", c.Cache.Driver), nil)
	}

	switch c.Ledger.Driver {
	case "none", "sqlite":
	case "postgres":
		if c.Ledger.Postgres == "" {
			return domain.ConfigError("ledger.postgres_dsn is required for the postgres driver", nil)
		}
	default:
		return domain.ConfigError(fmt.Sprintf("invalid ledger driver: %s", c.Ledger.Driver), nil)
	}

	return nil
}

// RunMode returns the parsed mode. Call after Validate.
func (c *Config) RunMode() domain.Mode {
	m, _ := domain.ParseMode(c.Mode)
	return m
}

// Format returns the parsed output format. Call after Validate.
func (c *Config) Format() domain.OutputFormat {
	f, _ := domain.ParseOutputFormat(c.OutputFormat)
	return f
}

// LogFormat returns json or console.
func (c *Config) LogFormat() string {
	if c.LogJSON {
		return "json"
	}
	return "console"
}

// ConversionOptions returns the engine options derived from this config.
func (c *Config) ConversionOptions() domain.ConversionOptions {
	return domain.ConversionOptions{
		ImagesEnabled: c.Images,
		LowResDPI:     c.LowResDPI,
		HighResDPI:    c.HighResDPI,
		Format:        c.Format(),
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
