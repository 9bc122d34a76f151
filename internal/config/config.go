package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file read by Load.
const MaxConfigFileBytes = 64 * 1024

// Camera facings.
const (
	FacingFront = "front"
	FacingBack  = "back"
)

// Permission states accepted in camera.permission.
const (
	PermissionAuthorized    = "authorized"
	PermissionDenied        = "denied"
	PermissionRestricted    = "restricted"
	PermissionNotDetermined = "not_determined"
)

// Collision policies accepted in storage.collision.
const (
	CollisionSuffix    = "suffix"
	CollisionOverwrite = "overwrite"
)

// CameraConfig describes the capture device and the permission gate in front of it.
// Type selects a concrete implementation ("synthetic", "directory" or "none").
type CameraConfig struct {
	Type         string `yaml:"type"`          // "synthetic", "directory", "none"
	Facing       string `yaml:"facing"`        // preferred facing: "front" (default) or "back"
	Permission   string `yaml:"permission"`    // initial authorization status
	PromptAnswer bool   `yaml:"prompt_answer"` // answer given when permission is not_determined
	IndicatorPin int    `yaml:"indicator_pin"` // GPIO pin for the "camera in use" LED (BCM). 0 = not used.
	SourceDir    string `yaml:"source_dir"`    // frames replayed by the "directory" camera
	WidthPx      int    `yaml:"width_px"`      // synthetic frame width
	HeightPx     int    `yaml:"height_px"`     // synthetic frame height
	JPEGQuality  int    `yaml:"jpeg_quality"`  // 1-100
}

// StorageConfig describes where captured photos are persisted.
type StorageConfig struct {
	DocumentsDir    string `yaml:"documents_dir"`     // per-app documents root
	RelativePath    string `yaml:"relative_path"`     // e.g. "ImageViewer/takenPhotos"
	Suffix          string `yaml:"suffix"`            // e.g. "_taken.jpg"
	Collision       string `yaml:"collision"`         // "suffix" (default) or "overwrite"
	LoadWorkers     int    `yaml:"load_workers"`      // concurrent loads in GetAll
	ThumbnailMaxDim int    `yaml:"thumbnail_max_dim"` // gallery thumbnail size (px)
}

// CatalogConfig is optional: SQLite index of captures.
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // relative paths resolve against storage.documents_dir
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Storage  StorageConfig  `yaml:"storage"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files located directly in a "configs" directory.
func ValidateConfigPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults validates the config and fills in defaults.
func (c *Config) applyDefaults() error {
	switch c.Camera.Type {
	case "synthetic", "directory", "none":
	case "":
		return fmt.Errorf("camera.type is required")
	default:
		return fmt.Errorf("unsupported camera.type %q", c.Camera.Type)
	}
	if c.Camera.Type == "directory" && c.Camera.SourceDir == "" {
		return fmt.Errorf("camera.source_dir is required for the directory camera")
	}

	switch c.Camera.Facing {
	case "":
		c.Camera.Facing = FacingFront
	case FacingFront, FacingBack:
	default:
		return fmt.Errorf("camera.facing must be %q or %q, got %q", FacingFront, FacingBack, c.Camera.Facing)
	}

	switch c.Camera.Permission {
	case "":
		c.Camera.Permission = PermissionNotDetermined
	case PermissionAuthorized, PermissionDenied, PermissionRestricted, PermissionNotDetermined:
	default:
		return fmt.Errorf("unsupported camera.permission %q", c.Camera.Permission)
	}

	if c.Camera.IndicatorPin < 0 {
		return fmt.Errorf("camera.indicator_pin must be >= 0, got %d", c.Camera.IndicatorPin)
	}
	if c.Camera.WidthPx <= 0 {
		c.Camera.WidthPx = 1280
	}
	if c.Camera.HeightPx <= 0 {
		c.Camera.HeightPx = 960
	}
	if c.Camera.JPEGQuality == 0 {
		c.Camera.JPEGQuality = 90
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("camera.jpeg_quality must be between 1 and 100, got %d", c.Camera.JPEGQuality)
	}

	if c.Storage.DocumentsDir == "" {
		c.Storage.DocumentsDir = DefaultDocumentsDir()
	}
	if c.Storage.RelativePath == "" {
		c.Storage.RelativePath = "ImageViewer/takenPhotos"
	}
	if filepath.IsAbs(c.Storage.RelativePath) || strings.Contains(filepath.ToSlash(c.Storage.RelativePath), "..") {
		return fmt.Errorf("storage.relative_path must be relative and must not contain '..'")
	}
	if c.Storage.Suffix == "" {
		c.Storage.Suffix = "_taken.jpg"
	}
	if strings.ContainsAny(c.Storage.Suffix, `/\`) || strings.Contains(c.Storage.Suffix, "..") {
		return fmt.Errorf("storage.suffix must not contain path separators or '..', got %q", c.Storage.Suffix)
	}
	if len(filepath.Ext(c.Storage.Suffix)) < 2 {
		return fmt.Errorf("storage.suffix must end with a file extension, got %q", c.Storage.Suffix)
	}
	switch c.Storage.Collision {
	case "":
		c.Storage.Collision = CollisionSuffix
	case CollisionSuffix, CollisionOverwrite:
	default:
		return fmt.Errorf("storage.collision must be %q or %q, got %q", CollisionSuffix, CollisionOverwrite, c.Storage.Collision)
	}
	if c.Storage.LoadWorkers <= 0 {
		c.Storage.LoadWorkers = 4
	}
	if c.Storage.ThumbnailMaxDim <= 0 {
		c.Storage.ThumbnailMaxDim = 320
	}

	if c.Catalog.Enabled && c.Catalog.Path == "" {
		c.Catalog.Path = "ImageViewer/catalog.db"
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// DefaultDocumentsDir returns ~/Documents/GoSnap, or ./documents when the
// home directory cannot be resolved.
func DefaultDocumentsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "documents"
	}
	return filepath.Join(home, "Documents", "GoSnap")
}

// LoadEnv loads environment variables from .env files.
// A missing file is not an error (e.g. in production).
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// ApplyEnv overrides config values from GOSNAP_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("GOSNAP_DOCUMENTS_DIR"); ok && v != "" {
		c.Storage.DocumentsDir = v
	}
	if v, ok := os.LookupEnv("GOSNAP_DEBUG_LEVEL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 4 {
			return fmt.Errorf("GOSNAP_DEBUG_LEVEL must be 0-4, got %q", v)
		}
		c.Defaults.DebugLevel = n
	}
	if v, ok := os.LookupEnv("GOSNAP_MOCK_GPIO"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GOSNAP_MOCK_GPIO: %w", err)
		}
		c.Defaults.MockGPIO = b
	}
	if v, ok := os.LookupEnv("GOSNAP_CAMERA_PERMISSION"); ok && v != "" {
		c.Camera.Permission = v
		return c.applyDefaults()
	}
	return nil
}

// PhotoDir returns the absolute-or-relative directory that holds captured photos.
func (c *Config) PhotoDir() string {
	return filepath.Join(c.Storage.DocumentsDir, filepath.FromSlash(c.Storage.RelativePath))
}

// CatalogPath returns the SQLite catalog location, resolved against the documents dir.
func (c *Config) CatalogPath() string {
	if filepath.IsAbs(c.Catalog.Path) {
		return c.Catalog.Path
	}
	return filepath.Join(c.Storage.DocumentsDir, filepath.FromSlash(c.Catalog.Path))
}
