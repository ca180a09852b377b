package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override, e.g. EDUFLOW_OUTPUT_QUALITY
const EnvPrefix = "EDUFLOW_"

// Config holds the application configuration
type Config struct {
	Debug   bool          `json:"debug" env:"DEBUG"`
	Ingest  IngestConfig  `json:"ingest" envPrefix:"INGEST_"`
	Cropper CropperConfig `json:"cropper" envPrefix:"CROPPER_"`
	Output  OutputConfig  `json:"output" envPrefix:"OUTPUT_"`
	Locator LocatorConfig `json:"locator" envPrefix:"LOCATOR_"`
	Card    CardConfig    `json:"card" envPrefix:"CARD_"`
	Store   StoreConfig   `json:"store" envPrefix:"STORE_"`
}

// IngestConfig holds upload limits and accepted formats
type IngestConfig struct {
	MaxUploadSize    int64    `json:"max_upload_size" env:"MAX_UPLOAD_SIZE"`
	ConvertQuality   int      `json:"convert_quality" env:"CONVERT_QUALITY"`
	SupportedFormats []string `json:"supported_formats" env:"SUPPORTED_FORMATS" envSeparator:","`
	MinImageSize     int      `json:"min_image_size" env:"MIN_IMAGE_SIZE"`
}

// CropperConfig holds the transform bounds of the crop editor
type CropperConfig struct {
	MinZoom     float64 `json:"min_zoom" env:"MIN_ZOOM"`
	MaxZoom     float64 `json:"max_zoom" env:"MAX_ZOOM"`
	MaxRotation float64 `json:"max_rotation" env:"MAX_ROTATION"`
}

// OutputConfig holds configuration for the baked photo
type OutputConfig struct {
	Width     int    `json:"width" env:"WIDTH"`
	Format    string `json:"format" env:"FORMAT"`
	Quality   int    `json:"quality" env:"QUALITY"`
	Lossless  bool   `json:"lossless" env:"LOSSLESS"`
	OutputDir string `json:"output_dir" env:"DIR"`
	Suffix    string `json:"suffix" env:"SUFFIX"`
}

// LocatorConfig selects how the initial crop center is found
type LocatorConfig struct {
	Mode          string  `json:"mode" env:"MODE"` // none|saliency|ollama|llamacpp
	URL           string  `json:"url" env:"URL"`
	Model         string  `json:"model" env:"MODEL"`
	MaxDimension  int     `json:"max_dimension" env:"MAX_DIMENSION"`
	MinConfidence float64 `json:"min_confidence" env:"MIN_CONFIDENCE"`
}

// CardConfig holds passport card rendering settings
type CardConfig struct {
	Scale            int    `json:"scale" env:"SCALE"`
	OrganizationName string `json:"organization_name" env:"ORGANIZATION_NAME"`
	Origin           string `json:"origin" env:"ORIGIN"`
	PrintCommand     string `json:"print_command" env:"PRINT_COMMAND"`
	Printer          string `json:"printer" env:"PRINTER"`
}

// StoreConfig selects where saved photos go
type StoreConfig struct {
	Backend         string `json:"backend" env:"BACKEND"` // memory|firestore
	ProjectID       string `json:"project_id" env:"PROJECT_ID"`
	CredentialsFile string `json:"credentials_file" env:"CREDENTIALS_FILE"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			MaxUploadSize:    5 * 1024 * 1024,
			ConvertQuality:   90,
			SupportedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
			MinImageSize:     1,
		},
		Cropper: CropperConfig{
			MinZoom:     1,
			MaxZoom:     3,
			MaxRotation: 180,
		},
		Output: OutputConfig{
			Width:     512,
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_passport",
		},
		Locator: LocatorConfig{
			Mode:          "saliency",
			URL:           "http://localhost:11434",
			Model:         "llava",
			MaxDimension:  768,
			MinConfidence: 0.3,
		},
		Card: CardConfig{
			Scale:        3,
			Origin:       "https://eduflow.app",
			PrintCommand: "lp",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
	}
}

// Load builds the effective configuration: defaults, then the JSON file when
// path is not empty, then a .env file next to the working directory, then
// EDUFLOW_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads a .env file if it exists. Variables already set in the
// environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from EDUFLOW_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep their defaults.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Ingest.MaxUploadSize < 1 {
		return fmt.Errorf("ingest.max_upload_size must be positive")
	}

	if c.Ingest.ConvertQuality < 1 || c.Ingest.ConvertQuality > 100 {
		return fmt.Errorf("ingest.convert_quality must be between 1 and 100")
	}

	if len(c.Ingest.SupportedFormats) == 0 {
		return fmt.Errorf("ingest.supported_formats cannot be empty")
	}

	if c.Cropper.MinZoom <= 0 || c.Cropper.MaxZoom < c.Cropper.MinZoom {
		return fmt.Errorf("cropper zoom range [%g, %g] is invalid", c.Cropper.MinZoom, c.Cropper.MaxZoom)
	}

	if c.Cropper.MaxRotation < 0 || c.Cropper.MaxRotation > 180 {
		return fmt.Errorf("cropper.max_rotation must be between 0 and 180")
	}

	if c.Output.Width < 1 {
		return fmt.Errorf("output.width must be positive")
	}

	if !slices.Contains([]string{"jpg", "jpeg", "png", "webp"}, c.Output.Format) {
		return fmt.Errorf("output.format must be one of jpg, png, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if !slices.Contains([]string{"none", "saliency", "ollama", "llamacpp"}, c.Locator.Mode) {
		return fmt.Errorf("locator.mode must be one of none, saliency, ollama, llamacpp")
	}

	if c.Locator.MinConfidence < 0 || c.Locator.MinConfidence > 1 {
		return fmt.Errorf("locator.min_confidence must be between 0 and 1")
	}

	if c.Card.Scale < 1 || c.Card.Scale > 8 {
		return fmt.Errorf("card.scale must be between 1 and 8")
	}

	switch c.Store.Backend {
	case "memory":
	case "firestore":
		if c.Store.ProjectID == "" {
			return fmt.Errorf("store.project_id is required for the firestore backend")
		}
	default:
		return fmt.Errorf("store.backend must be memory or firestore")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "eduflow", "passport-photo.json")
}
