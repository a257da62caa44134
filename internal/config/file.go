package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// loadFile decodes a .yaml/.yml, .toml or .json file into cfg. Keys are
// normalized to lower case with hyphens turned into underscores before they
// are mapped onto the struct.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	raw := map[string]interface{}{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse toml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}

	normalized, err := yaml.Marshal(normalizeKeys(raw))
	if err != nil {
		return fmt.Errorf("re-encode config: %w", err)
	}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return fmt.Errorf("map config: %w", err)
	}
	return nil
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.ReplaceAll(k, "-", "_"))
}

func normalizeKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[normalizeKey(k)] = normalizeKeys(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[normalizeKey(fmt.Sprint(k))] = normalizeKeys(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeKeys(val)
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeKeys(val)
		}
		return out
	default:
		return v
	}
}
