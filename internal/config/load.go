package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadFile reads options directly from a YAML or TOML file by extension,
// bypassing viper entirely. Useful when a caller wants to read a config
// file before any layered/env-aware loader has been constructed.
// Returns DefaultOptions() (not a zero value) if the file does not exist.
func LoadFile(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path) // #nosec G304 - path supplied by caller
	if os.IsNotExist(err) {
		return opts, nil
	}
	if err != nil {
		return opts, fmt.Errorf("config: read %q: %w", path, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return DefaultOptions(), fmt.Errorf("config: parse yaml %q: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &opts); err != nil {
			return DefaultOptions(), fmt.Errorf("config: parse toml %q: %w", path, err)
		}
	default:
		return opts, fmt.Errorf("config: unrecognized extension %q", ext)
	}

	return opts, nil
}
