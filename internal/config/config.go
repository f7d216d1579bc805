// Package config merges CLI flags with an optional YAML file at
// ~/.config/ht/config.yaml. The file is entirely optional: a missing
// file is not an error, matching the teacher's tolerant-of-missing-file
// posture for its own role config.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Size is a COLSxROWS terminal size.
type Size struct {
	Cols, Rows int
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Cols, s.Rows)
}

// DefaultSize is used when neither a flag nor the config file sets one.
var DefaultSize = Size{Cols: 120, Rows: 40}

// File is the on-disk shape of ~/.config/ht/config.yaml. Every field is
// optional; zero values mean "not set, fall through to defaults".
type File struct {
	Size      string   `yaml:"size"`
	Listen    string   `yaml:"listen"`
	Subscribe []string `yaml:"subscribe"`
	NoColor   bool     `yaml:"noColor"`
	TraceEvents bool   `yaml:"traceEvents"`
}

// Load reads ~/.config/ht/config.yaml if present. A missing file yields
// a zero File and a nil error.
func Load() (File, error) {
	path, err := DefaultPath()
	if err != nil {
		return File{}, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML config file at path. A missing file yields a
// zero File and a nil error, matching Load's tolerance.
func LoadFrom(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// DefaultPath returns ~/.config/ht/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ht", "config.yaml"), nil
}
