package config

import (
	"os"
	"path/filepath"
	"testing"

	"siteembed/internal/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "siteembed.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.Data.Dir)
	assert.Equal(t, "script.js", cfg.Target.Path)
	assert.Equal(t, DefaultStartMarker, cfg.Target.StartMarker)
	assert.Equal(t, DefaultEndMarker, cfg.Target.EndMarker)
	assert.Equal(t, loader.DefaultRegistry(), cfg.Registry())
	assert.True(t, cfg.ValidateJavaScript())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siteembed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  dir: content
  schema_dir: content/schemas
  datasets:
    - id: profile
      path: profile.json
    - id: talks
      path: nested/talks.json
target:
  path: web/app.js
  start_marker: "/* BEGIN DATA */"
  end_marker: "/* END DATA */"
validate:
  javascript: false
report:
  path: build/report.json
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "content", cfg.Data.Dir)
	assert.Equal(t, "content/schemas", cfg.Data.SchemaDir)
	assert.Equal(t, loader.Registry{
		{ID: "profile", Path: "profile.json"},
		{ID: "talks", Path: "nested/talks.json"},
	}, cfg.Registry())
	assert.Equal(t, "web/app.js", cfg.Target.Path)
	assert.Equal(t, "/* BEGIN DATA */", cfg.Target.StartMarker)
	assert.Equal(t, DefaultComment, cfg.Target.Comment)
	assert.False(t, cfg.ValidateJavaScript())
	assert.Equal(t, "build/report.json", cfg.Report.Path)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SITEEMBED_DATA_DIR", "env-data")
	t.Setenv("SITEEMBED_TARGET", "env.js")
	t.Setenv("SITEEMBED_SCHEMA_DIR", "env-schemas")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-data", cfg.Data.Dir)
	assert.Equal(t, "env.js", cfg.Target.Path)
	assert.Equal(t, "env-schemas", cfg.Data.SchemaDir)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "siteembed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data: [unterminated"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "same markers", mutate: func(c *Config) { c.Target.EndMarker = c.Target.StartMarker }},
		{name: "blank marker", mutate: func(c *Config) { c.Target.StartMarker = "   " }},
		{name: "multi-line start marker", mutate: func(c *Config) { c.Target.StartMarker = "// a\n// b" }},
		{name: "non-comment", mutate: func(c *Config) { c.Target.Comment = "hello" }},
		{name: "bad dataset id", mutate: func(c *Config) { c.Data.Datasets[0].ID = "about-me" }},
		{name: "duplicate dataset", mutate: func(c *Config) { c.Data.Datasets[1].ID = c.Data.Datasets[0].ID }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
