package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// API contains the HTTP control surface configuration.
type API struct {
	Bind        string   `toml:"bind"`
	Token       string   `toml:"token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Directory points at the identity directory source.
type Directory struct {
	Path string `toml:"path"`
}

// Region is a fractional rectangle relative to the evidence image bounds.
type Region struct {
	Name   string  `toml:"name"`
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

// Analyzer contains OCR and authenticity check settings.
//
// Regions are tried in the order they are declared; the first region whose
// recognized text matches the identifier pattern wins.
type Analyzer struct {
	TesseractBinary     string   `toml:"tesseract_binary"`
	Language            string   `toml:"language"`
	PageSegMode         int      `toml:"page_seg_mode"`
	Regions             []Region `toml:"regions"`
	LabelPattern        string   `toml:"label_pattern"`
	MinDigits           int      `toml:"min_digits"`
	MaxDigits           int      `toml:"max_digits"`
	ResizeWidth         int      `toml:"resize_width"`
	Contrast            float64  `toml:"contrast"`
	Sharpen             float64  `toml:"sharpen"`
	Threshold           int      `toml:"threshold"`
	ReferencesDir       string   `toml:"references_dir"`
	ProfileRegion       Region   `toml:"profile_region"`
	TemplateWidth       int      `toml:"template_width"`
	Stride              int      `toml:"stride"`
	PixelTolerance      int      `toml:"pixel_tolerance"`
	SimilarityThreshold float64  `toml:"similarity_threshold"`
	TimeoutSeconds      int      `toml:"timeout_seconds"`
}

// Fetch contains evidence download settings.
type Fetch struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxBytes       int64  `toml:"max_bytes"`
	UserAgent      string `toml:"user_agent"`
}

// Queue contains ETA estimation settings for the verification queue.
type Queue struct {
	InitialETASeconds int     `toml:"initial_eta_seconds"`
	MinETASeconds     int     `toml:"min_eta_seconds"`
	MaxETASeconds     int     `toml:"max_eta_seconds"`
	SmoothingFactor   float64 `toml:"smoothing_factor"`
}

// Ledger contains attempt ledger persistence and policy settings.
type Ledger struct {
	Backend        string `toml:"backend"`
	MaxAttempts    int    `toml:"max_attempts"`
	StrikeLock     string `toml:"strike_lock"`
	MismatchLock   string `toml:"mismatch_lock"`
	PostgresDSN    string `toml:"postgres_dsn"`
	RedisURL       string `toml:"redis_url"`
	RedisKeyPrefix string `toml:"redis_key_prefix"`
}

// Gateway contains settings for delivering decisions to the platform adapter.
type Gateway struct {
	Mode           string `toml:"mode"`
	WebhookURL     string `toml:"webhook_url"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains operator alert settings.
type Notifications struct {
	NtfyTopic           string   `toml:"ntfy_topic"`
	RequestTimeout      int      `toml:"request_timeout"`
	SESRegion           string   `toml:"ses_region"`
	SESFrom             string   `toml:"ses_from"`
	SESTo               []string `toml:"ses_to"`
	Escalations         bool     `toml:"escalations"`
	ConfigurationErrors bool     `toml:"configuration_errors"`
	Daemon              bool     `toml:"daemon"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Warden.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - API: HTTP bind address, bearer token, CORS origins
//   - Directory: identity directory CSV source
//   - Analyzer: OCR regions, preprocessing, authenticity check thresholds
//   - Fetch: evidence download limits
//   - Queue: ETA moving average parameters
//   - Ledger: lockout policy and storage backend
//   - Gateway: decision delivery to the platform adapter
//   - Notifications: ntfy and SES operator alerts
//   - Logging: log format, level, and audit log retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Directory     Directory     `toml:"directory"`
	Analyzer      Analyzer      `toml:"analyzer"`
	Fetch         Fetch         `toml:"fetch"`
	Queue         Queue         `toml:"queue"`
	Ledger        Ledger        `toml:"ledger"`
	Gateway       Gateway       `toml:"gateway"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("warden.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "warden.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "wardend.lock")
}

// AuditDir returns the directory holding daily decision audit logs.
func (c *Config) AuditDir() string {
	return filepath.Join(c.Paths.LogDir, "audit")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "wardend.pid")
}

// FetchTimeout returns the bounded evidence download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// AnalyzerTimeout returns the bounded analysis timeout.
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Analyzer.TimeoutSeconds) * time.Second
}

// APIBaseURL returns the URL CLI clients use to reach the daemon API.
func (c *Config) APIBaseURL() string {
	bind := strings.TrimSpace(c.API.Bind)
	if strings.HasPrefix(bind, ":") {
		bind = "127.0.0.1" + bind
	}
	return "http://" + bind
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
