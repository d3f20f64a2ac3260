package rubicon

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up at the workspace root.
const ConfigFileName = ".rubicon.yml"

// Config tunes workspace indexing. All fields are optional; zero values fall
// back to defaults.
type Config struct {
	// Exclude lists path patterns (relative to the workspace root) that
	// indexing skips. Patterns match whole path segments.
	Exclude []string `yaml:"exclude"`

	// LibraryRoots lists directories outside the project whose declarations
	// are indexed as external: resolvable, but hidden from fuzzy search by
	// default.
	LibraryRoots []string `yaml:"library_roots"`

	// Parallelism bounds concurrent file indexing. Zero means GOMAXPROCS.
	Parallelism int `yaml:"parallelism"`
}

// DefaultConfig returns the settings used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Exclude: []string{"vendor", "tmp", "node_modules"},
	}
}

// LoadConfig reads root's config file, falling back to defaults when the
// file is absent. A present but malformed file is an error, not a silent
// fallback.
func LoadConfig(root string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", ConfigFileName, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// parallelism resolves the effective worker count.
func (c Config) parallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}

// excluded reports whether a root-relative path falls under an exclude
// pattern. A pattern matches when any path segment matches it, so "vendor"
// prunes the whole subtree.
func (c Config) excluded(rel string) bool {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, pattern := range c.Exclude {
		for _, seg := range segments {
			if ok, err := filepath.Match(pattern, seg); err == nil && ok {
				return true
			}
		}
	}
	return false
}
