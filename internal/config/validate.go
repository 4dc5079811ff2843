package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateDirectory(); err != nil {
		return err
	}
	if err := c.validateAnalyzer(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateGateway(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"analyzer.timeout_seconds":      c.Analyzer.TimeoutSeconds,
		"fetch.timeout_seconds":         c.Fetch.TimeoutSeconds,
		"gateway.timeout_seconds":       c.Gateway.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateDirectory() error {
	if strings.TrimSpace(c.Directory.Path) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("directory.path is required. Edit %s (create with 'warden config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateAnalyzer() error {
	a := c.Analyzer
	if err := ensurePositiveMap(map[string]int{
		"analyzer.min_digits":     a.MinDigits,
		"analyzer.max_digits":     a.MaxDigits,
		"analyzer.resize_width":   a.ResizeWidth,
		"analyzer.template_width": a.TemplateWidth,
		"analyzer.stride":         a.Stride,
	}); err != nil {
		return err
	}
	if a.MinDigits > a.MaxDigits {
		return errors.New("analyzer.min_digits must not exceed analyzer.max_digits")
	}
	if a.Threshold < 0 || a.Threshold > 255 {
		return errors.New("analyzer.threshold must be between 0 and 255")
	}
	if a.PixelTolerance <= 0 || a.PixelTolerance > 255 {
		return errors.New("analyzer.pixel_tolerance must be between 1 and 255")
	}
	if a.SimilarityThreshold <= 0 || a.SimilarityThreshold > 1 {
		return errors.New("analyzer.similarity_threshold must be within (0, 1]")
	}
	if _, err := regexp.Compile(a.LabelPattern); err != nil {
		return fmt.Errorf("analyzer.label_pattern: %w", err)
	}
	if strings.TrimSpace(a.ReferencesDir) == "" {
		return errors.New("analyzer.references_dir must be set")
	}
	seen := make(map[string]struct{}, len(a.Regions))
	for _, region := range a.Regions {
		if _, dup := seen[region.Name]; dup {
			return fmt.Errorf("analyzer.regions: duplicate region name %q", region.Name)
		}
		seen[region.Name] = struct{}{}
		if err := validateRegion("analyzer.regions."+region.Name, region); err != nil {
			return err
		}
	}
	return validateRegion("analyzer.profile_region", a.ProfileRegion)
}

func validateRegion(name string, r Region) error {
	const epsilon = 1e-9
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%s must have non-negative origin and positive size", name)
	}
	if r.X+r.Width > 1+epsilon || r.Y+r.Height > 1+epsilon {
		return fmt.Errorf("%s must lie within the image (fractions of 1)", name)
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := c.Queue
	if err := ensurePositiveMap(map[string]int{
		"queue.initial_eta_seconds": q.InitialETASeconds,
		"queue.min_eta_seconds":     q.MinETASeconds,
		"queue.max_eta_seconds":     q.MaxETASeconds,
	}); err != nil {
		return err
	}
	if q.MinETASeconds > q.MaxETASeconds {
		return errors.New("queue.min_eta_seconds must not exceed queue.max_eta_seconds")
	}
	if q.SmoothingFactor <= 0 || q.SmoothingFactor > 1 {
		return errors.New("queue.smoothing_factor must be within (0, 1]")
	}
	return nil
}

func (c *Config) validateLedger() error {
	l := c.Ledger
	if l.MaxAttempts <= 0 {
		return errors.New("ledger.max_attempts must be positive")
	}
	for key, value := range map[string]string{"ledger.strike_lock": l.StrikeLock, "ledger.mismatch_lock": l.MismatchLock} {
		if value != LockPolicyAdmin && value != LockPolicyRejoin {
			return fmt.Errorf("%s must be %q or %q (got %q)", key, LockPolicyAdmin, LockPolicyRejoin, value)
		}
	}
	switch l.Backend {
	case "sqlite", "memory":
	case "postgres":
		if l.PostgresDSN == "" {
			return errors.New("ledger.postgres_dsn must be set when ledger.backend is postgres (or export WARDEN_POSTGRES_DSN)")
		}
	case "redis":
		if l.RedisURL == "" {
			return errors.New("ledger.redis_url must be set when ledger.backend is redis (or export WARDEN_REDIS_URL)")
		}
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q", l.Backend)
	}
	return nil
}

func (c *Config) validateGateway() error {
	switch c.Gateway.Mode {
	case "log":
		return nil
	case "webhook":
		if c.Gateway.WebhookURL == "" {
			return errors.New("gateway.webhook_url must be set when gateway.mode is webhook")
		}
		parsed, err := url.Parse(c.Gateway.WebhookURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("gateway.webhook_url must be an http(s) URL (got %q)", c.Gateway.WebhookURL)
		}
		return nil
	default:
		return fmt.Errorf("gateway.mode: unsupported value %q", c.Gateway.Mode)
	}
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.SESRegion == "" {
		return nil
	}
	if n.SESFrom == "" {
		return errors.New("notifications.ses_from must be set when notifications.ses_region is set")
	}
	if len(n.SESTo) == 0 {
		return errors.New("notifications.ses_to must list at least one recipient when notifications.ses_region is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
