package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(5*1024*1024), cfg.Ingest.MaxUploadSize)
	assert.Equal(t, 90, cfg.Output.Quality)
	assert.Equal(t, 512, cfg.Output.Width)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Output.Format = "webp"
	cfg.Card.OrganizationName = "Lycée Nord"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": {"quality": 75}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Output.Quality)
	assert.Equal(t, "jpg", cfg.Output.Format)
	assert.Equal(t, 3.0, cfg.Cropper.MaxZoom)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("EDUFLOW_OUTPUT_QUALITY", "80")
	t.Setenv("EDUFLOW_LOCATOR_MODE", "ollama")
	t.Setenv("EDUFLOW_INGEST_SUPPORTED_FORMATS", "jpeg,png")
	t.Setenv("EDUFLOW_DEBUG", "true")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, 80, cfg.Output.Quality)
	assert.Equal(t, "ollama", cfg.Locator.Mode)
	assert.Equal(t, []string{"jpeg", "png"}, cfg.Ingest.SupportedFormats)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "jpg", cfg.Output.Format, "unset variables keep their value")
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("EDUFLOW_OUTPUT_QUALITY", "high")
	assert.Error(t, Default().ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("EDUFLOW_CARD_SCALE=2\n"), 0644))
	t.Setenv("EDUFLOW_CARD_SCALE", "")
	os.Unsetenv("EDUFLOW_CARD_SCALE")

	require.NoError(t, LoadDotEnv(path))
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 2, cfg.Card.Scale)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"quality", func(c *Config) { c.Output.Quality = 0 }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"zoom range", func(c *Config) { c.Cropper.MaxZoom = 0.5 }},
		{"rotation", func(c *Config) { c.Cropper.MaxRotation = 270 }},
		{"locator", func(c *Config) { c.Locator.Mode = "magic" }},
		{"firestore project", func(c *Config) { c.Store.Backend = "firestore" }},
		{"backend", func(c *Config) { c.Store.Backend = "s3" }},
		{"formats", func(c *Config) { c.Ingest.SupportedFormats = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "passport-photo.json", filepath.Base(GetConfigPath()))
}
