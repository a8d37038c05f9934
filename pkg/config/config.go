package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/iltransform/pkg/source"
)

// Config holds all configuration options for iltransform.
type Config struct {
	// Which rewriting passes run
	Rewrite RewriteConfig `koanf:"rewrite" toml:"rewrite"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Aggregate wrapper generation
	Wrappers WrapperConfig `koanf:"wrappers" toml:"wrappers"`

	// Final newline handling when files are written back
	Newline NewlineConfig `koanf:"newline" toml:"newline"`
}

// RewriteConfig selects the rewriting passes.
type RewriteConfig struct {
	AddFactAttributes     bool `koanf:"add_fact_attributes" toml:"add_fact_attributes"`
	AddProcessIsolation   bool `koanf:"add_process_isolation" toml:"add_process_isolation"`
	CleanupILModule       bool `koanf:"cleanup_il_module" toml:"cleanup_il_module"`
	CleanupILAssembly     bool `koanf:"cleanup_il_assembly" toml:"cleanup_il_assembly"`
	UncategorizedCleanup  bool `koanf:"uncategorized_cleanup" toml:"uncategorized_cleanup"`
	DeduplicateClassNames bool `koanf:"deduplicate_class_names" toml:"deduplicate_class_names"`
	// ClassToDeduplicate restricts class deduplication to one main class name.
	ClassToDeduplicate string `koanf:"class_to_deduplicate" toml:"class_to_deduplicate"`
	// Workers bounds parallel file processing; 0 uses twice the CPU count.
	Workers int `koanf:"workers" toml:"workers"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls the rewrite cache.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// WrapperConfig controls aggregate wrapper generation.
type WrapperConfig struct {
	MaxProjectsPerWrapper int `koanf:"max_projects_per_wrapper" toml:"max_projects_per_wrapper"`
}

// NewlineConfig holds the final-newline policy (no, preserve, yes) for
// source files and project descriptors.
type NewlineConfig struct {
	Sources  string `koanf:"sources" toml:"sources"`
	Projects string `koanf:"projects" toml:"projects"`
}

// SourcePolicy parses the policy for source files.
func (n NewlineConfig) SourcePolicy() (source.NewlinePolicy, error) {
	return source.ParseNewlinePolicy(n.Sources)
}

// ProjectPolicy parses the policy for project descriptors.
func (n NewlineConfig) ProjectPolicy() (source.NewlinePolicy, error) {
	return source.ParseNewlinePolicy(n.Projects)
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "toon", "yaml"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Rewrite: RewriteConfig{
			AddFactAttributes:    true,
			AddProcessIsolation:  true,
			CleanupILModule:      true,
			CleanupILAssembly:    true,
			UncategorizedCleanup: true,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				".iltransform",
				"bin",
				"obj",
				"artifacts",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".iltransform/cache",
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Wrappers: WrapperConfig{
			MaxProjectsPerWrapper: 100,
		},
		Newline: NewlineConfig{
			Sources:  "yes",
			Projects: "preserve",
		},
	}
}

// Validate reports every invalid value.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format: unknown format %q", c.Output.Format))
	}
	if c.Wrappers.MaxProjectsPerWrapper <= 0 {
		errs = append(errs, fmt.Errorf("wrappers.max_projects_per_wrapper must be positive, got %d", c.Wrappers.MaxProjectsPerWrapper))
	}
	if c.Rewrite.Workers < 0 {
		errs = append(errs, fmt.Errorf("rewrite.workers must not be negative, got %d", c.Rewrite.Workers))
	}
	if _, err := c.Newline.SourcePolicy(); err != nil {
		errs = append(errs, fmt.Errorf("newline.sources: %w", err))
	}
	if _, err := c.Newline.ProjectPolicy(); err != nil {
		errs = append(errs, fmt.Errorf("newline.projects: %w", err))
	}
	return errors.Join(errs...)
}

// Load loads configuration from a file, on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadResult is a loaded config together with the file it came from.
type LoadResult struct {
	Config *Config
	// Source is the config file path, or "" when defaults were used.
	Source string
}

type loadOptions struct {
	path string
	dirs []string
}

// LoadOption customizes LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly this file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithSearchDirs replaces the directories searched for a config file.
func WithSearchDirs(dirs ...string) LoadOption {
	return func(o *loadOptions) {
		o.dirs = dirs
	}
}

// Config file names searched for, in order.
var configNames = []string{
	"iltransform.toml",
	"iltransform.yaml",
	"iltransform.yml",
	"iltransform.json",
	".iltransform.toml",
	".iltransform.yaml",
	".iltransform.yml",
	".iltransform.json",
}

// LoadConfig loads the explicit path when given, otherwise the first config
// file found in the search directories, otherwise the defaults. A config
// file that exists but does not parse is an error.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{dirs: []string{".", ".iltransform"}}
	for _, opt := range opts {
		opt(&o)
	}

	if o.path != "" {
		cfg, err := Load(o.path)
		if err != nil {
			return nil, err
		}
		return &LoadResult{Config: cfg, Source: o.path}, nil
	}

	for _, dir := range o.dirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				return nil, err
			}
			return &LoadResult{Config: cfg, Source: path}, nil
		}
	}
	return &LoadResult{Config: DefaultConfig()}, nil
}
