package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"siteembed/internal/loader"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath        = "siteembed.yaml"
	DefaultStartMarker = "// ========== EMBEDDED DATA =========="
	DefaultEndMarker   = "// ========== ABOUT SECTION RENDERER =========="
	DefaultComment     = "// Data is embedded directly to avoid fetch issues on GitHub Pages"
)

type DatasetEntry struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
}

type Config struct {
	Data struct {
		Dir       string         `yaml:"dir"`
		SchemaDir string         `yaml:"schema_dir"`
		Datasets  []DatasetEntry `yaml:"datasets"`
	} `yaml:"data"`
	Target struct {
		Path        string `yaml:"path"`
		StartMarker string `yaml:"start_marker"`
		EndMarker   string `yaml:"end_marker"`
		Comment     string `yaml:"comment"`
	} `yaml:"target"`
	Validation struct {
		// Pointer so an explicit false survives defaulting.
		JavaScript *bool `yaml:"javascript"`
	} `yaml:"validate"`
	Report struct {
		Path string `yaml:"path"`
	} `yaml:"report"`
}

// Default returns the configuration the tool runs with when no file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadConfig reads the YAML config at path. A missing file is not an error;
// defaults are used instead. Environment variables (optionally from .env)
// override file values.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if dir := os.Getenv("SITEEMBED_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if target := os.Getenv("SITEEMBED_TARGET"); target != "" {
		cfg.Target.Path = target
	}
	if schemaDir := os.Getenv("SITEEMBED_SCHEMA_DIR"); schemaDir != "" {
		cfg.Data.SchemaDir = schemaDir
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.Data.Dir) == "" {
		c.Data.Dir = "data"
	}
	if len(c.Data.Datasets) == 0 {
		for _, ds := range loader.DefaultRegistry() {
			c.Data.Datasets = append(c.Data.Datasets, DatasetEntry{ID: ds.ID, Path: ds.Path})
		}
	}
	if strings.TrimSpace(c.Target.Path) == "" {
		c.Target.Path = "script.js"
	}
	if c.Target.StartMarker == "" {
		c.Target.StartMarker = DefaultStartMarker
	}
	if c.Target.EndMarker == "" {
		c.Target.EndMarker = DefaultEndMarker
	}
	if c.Target.Comment == "" {
		c.Target.Comment = DefaultComment
	}
	if c.Validation.JavaScript == nil {
		enabled := true
		c.Validation.JavaScript = &enabled
	}
}

// Registry converts the configured dataset list into a loader registry.
func (c *Config) Registry() loader.Registry {
	reg := make(loader.Registry, 0, len(c.Data.Datasets))
	for _, ds := range c.Data.Datasets {
		reg = append(reg, loader.Dataset{
			ID:   strings.TrimSpace(ds.ID),
			Path: strings.TrimSpace(ds.Path),
		})
	}
	return reg
}

func (c *Config) ValidateJavaScript() bool {
	return c.Validation.JavaScript == nil || *c.Validation.JavaScript
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if err := c.Registry().Validate(); err != nil {
		return err
	}
	start := strings.TrimSpace(c.Target.StartMarker)
	end := strings.TrimSpace(c.Target.EndMarker)
	if start == "" || end == "" {
		return fmt.Errorf("start and end markers are required")
	}
	if start == end {
		return fmt.Errorf("start and end markers must differ")
	}
	if strings.ContainsAny(c.Target.StartMarker, "\r\n") {
		return fmt.Errorf("start marker must be a single line")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Target.Comment), "//") {
		return fmt.Errorf("comment must be a JavaScript line comment")
	}
	return nil
}
