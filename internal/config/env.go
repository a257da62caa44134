package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SMART_PDF_MD_"

type lookupFunc func(key string) (string, bool)

func osLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

type envBinding struct {
	apply func(cfg *Config, v string) error
}

func strBinding(field func(*Config) *string) envBinding {
	return envBinding{apply: func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func boolBinding(field func(*Config) *bool) envBinding {
	return envBinding{apply: func(cfg *Config, v string) error {
		b, err := parseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}}
}

func intBinding(field func(*Config) *int) envBinding {
	return envBinding{apply: func(cfg *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}}
}

func durationBinding(field func(*Config) *time.Duration) envBinding {
	return envBinding{apply: func(cfg *Config, v string) error {
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}}
}

var envBindings = map[string]envBinding{
	"INPUT":              strBinding(func(c *Config) *string { return &c.Input }),
	"SLICE":              intBinding(func(c *Config) *int { return &c.Slice }),
	"MODE":               strBinding(func(c *Config) *string { return &c.Mode }),
	"ENGINE":             strBinding(func(c *Config) *string { return &c.Engine }),
	"ENGINE_TEXTUAL":     strBinding(func(c *Config) *string { return &c.EngineTextual }),
	"ENGINE_NON_TEXTUAL": strBinding(func(c *Config) *string { return &c.EngineNonTextual }),
	"HEAVY_ENGINE":       strBinding(func(c *Config) *string { return &c.HeavyEngine }),
	"OUTPUT_DIR":         strBinding(func(c *Config) *string { return &c.OutputDir }),
	"OUTPUT_FORMAT":      strBinding(func(c *Config) *string { return &c.OutputFormat }),
	"IMAGES":             boolBinding(func(c *Config) *bool { return &c.Images }),
	"TEXT_MIN_CHARS":     intBinding(func(c *Config) *int { return &c.MinChars }),
	"TEXT_MIN_RATIO": {apply: func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		c.MinRatio = f
		return nil
	}},
	"MIN_SLICE":             intBinding(func(c *Config) *int { return &c.MinSlice }),
	"LOWRES_DPI":            intBinding(func(c *Config) *int { return &c.LowResDPI }),
	"HIGHRES_DPI":           intBinding(func(c *Config) *int { return &c.HighResDPI }),
	"MARKER_MOCK":           boolBinding(func(c *Config) *bool { return &c.Mock }),
	"MARKER_MOCK_FAIL":      boolBinding(func(c *Config) *bool { return &c.MockFail }),
	"MOCK_FAIL_IF_SLICE_GT": intBinding(func(c *Config) *int { return &c.MockFailIfSliceGT }),
	"DRY_RUN":               boolBinding(func(c *Config) *bool { return &c.DryRun }),
	"PROGRESS":              boolBinding(func(c *Config) *bool { return &c.Progress }),
	"INCLUDE": {apply: func(c *Config, v string) error {
		c.Include = splitList(v)
		return nil
	}},
	"EXCLUDE": {apply: func(c *Config, v string) error {
		c.Exclude = splitList(v)
		return nil
	}},
	"RESUME":          boolBinding(func(c *Config) *bool { return &c.Resume }),
	"WORKERS":         intBinding(func(c *Config) *int { return &c.Workers }),
	"HEAVY_TIMEOUT":   durationBinding(func(c *Config) *time.Duration { return &c.HeavyTimeout }),
	"RETRY_DELAY":     durationBinding(func(c *Config) *time.Duration { return &c.RetryDelay }),
	"RETRY_MAX_DELAY": durationBinding(func(c *Config) *time.Duration { return &c.RetryMaxDelay }),
	"LOG_LEVEL":       strBinding(func(c *Config) *string { return &c.LogLevel }),
	"LOG_JSON":        boolBinding(func(c *Config) *bool { return &c.LogJSON }),
	"LOG_FILE":        strBinding(func(c *Config) *string { return &c.LogFile }),
	"MARKER_COMMAND":  strBinding(func(c *Config) *string { return &c.Engines.Marker.Command }),
	"CACHE_DRIVER":    strBinding(func(c *Config) *string { return &c.Cache.Driver }),
	"REDIS_ADDR":      strBinding(func(c *Config) *string { return &c.Cache.Redis.Addr }),
	"LEDGER_DRIVER":   strBinding(func(c *Config) *string { return &c.Ledger.Driver }),
	"LEDGER_PATH":     strBinding(func(c *Config) *string { return &c.Ledger.Path }),
	"LEDGER_DSN":      strBinding(func(c *Config) *string { return &c.Ledger.Postgres }),
}

// applyEnvOverrides applies SMART_PDF_MD_* variables plus the unprefixed
// OPENROUTER_API_KEY and LLM_MODEL used by the vision engine.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	for _, key := range KnownEnvKeys() {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		if err := envBindings[strings.TrimPrefix(key, EnvPrefix)].apply(cfg, v); err != nil {
			return fmt.Errorf("%s=%q: %w", key, v, err)
		}
	}

	if v, ok := lookup("OPENROUTER_API_KEY"); ok && v != "" {
		cfg.Engines.Vision.APIKey = v
	}
	if v, ok := lookup("LLM_MODEL"); ok && v != "" {
		cfg.Engines.Vision.Model = v
	}
	return nil
}

// KnownEnvKeys lists every prefixed variable the loader understands, sorted.
func KnownEnvKeys() []string {
	keys := make([]string, 0, len(envBindings))
	for k := range envBindings {
		keys = append(keys, EnvPrefix+k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnownEnvKey reports whether key is consumed by the loader.
func IsKnownEnvKey(key string) bool {
	if key == "OPENROUTER_API_KEY" || key == "LLM_MODEL" {
		return true
	}
	_, ok := envBindings[strings.TrimPrefix(key, EnvPrefix)]
	return ok && strings.HasPrefix(key, EnvPrefix)
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
