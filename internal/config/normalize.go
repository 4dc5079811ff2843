package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	if err := c.normalizeAnalyzer(); err != nil {
		return err
	}
	c.normalizeLedger()
	c.normalizeGateway()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Directory.Path, err = expandPath(strings.TrimSpace(c.Directory.Path)); err != nil {
		return fmt.Errorf("directory.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("WARDEN_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	origins := c.API.CORSOrigins[:0]
	for _, origin := range c.API.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.API.CORSOrigins = origins
}

func (c *Config) normalizeAnalyzer() error {
	var err error
	c.Analyzer.TesseractBinary = strings.TrimSpace(c.Analyzer.TesseractBinary)
	if c.Analyzer.TesseractBinary == "" {
		c.Analyzer.TesseractBinary = defaultTesseractBinary
	}
	c.Analyzer.Language = strings.TrimSpace(c.Analyzer.Language)
	if c.Analyzer.Language == "" {
		c.Analyzer.Language = defaultTesseractLanguage
	}
	if strings.TrimSpace(c.Analyzer.LabelPattern) == "" {
		c.Analyzer.LabelPattern = defaultLabelPattern
	}
	if len(c.Analyzer.Regions) == 0 {
		c.Analyzer.Regions = DefaultRegions()
	}
	for i := range c.Analyzer.Regions {
		region := &c.Analyzer.Regions[i]
		region.Name = strings.TrimSpace(region.Name)
		if region.Name == "" {
			region.Name = fmt.Sprintf("region_%d", i+1)
		}
	}
	if c.Analyzer.ReferencesDir, err = expandPath(strings.TrimSpace(c.Analyzer.ReferencesDir)); err != nil {
		return fmt.Errorf("analyzer.references_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = defaultLedgerBackend
	}
	c.Ledger.StrikeLock = strings.ToLower(strings.TrimSpace(c.Ledger.StrikeLock))
	if c.Ledger.StrikeLock == "" {
		c.Ledger.StrikeLock = defaultLockPolicy
	}
	c.Ledger.MismatchLock = strings.ToLower(strings.TrimSpace(c.Ledger.MismatchLock))
	if c.Ledger.MismatchLock == "" {
		c.Ledger.MismatchLock = defaultLockPolicy
	}
	c.Ledger.PostgresDSN = strings.TrimSpace(c.Ledger.PostgresDSN)
	if c.Ledger.PostgresDSN == "" {
		if value, ok := os.LookupEnv("WARDEN_POSTGRES_DSN"); ok {
			c.Ledger.PostgresDSN = strings.TrimSpace(value)
		}
	}
	c.Ledger.RedisURL = strings.TrimSpace(c.Ledger.RedisURL)
	if c.Ledger.RedisURL == "" {
		if value, ok := os.LookupEnv("WARDEN_REDIS_URL"); ok {
			c.Ledger.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Ledger.RedisKeyPrefix = strings.TrimSpace(c.Ledger.RedisKeyPrefix)
	if c.Ledger.RedisKeyPrefix == "" {
		c.Ledger.RedisKeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeGateway() {
	c.Gateway.Mode = strings.ToLower(strings.TrimSpace(c.Gateway.Mode))
	if c.Gateway.Mode == "" {
		c.Gateway.Mode = defaultGatewayMode
	}
	c.Gateway.WebhookURL = strings.TrimSpace(c.Gateway.WebhookURL)
	c.Gateway.Token = strings.TrimSpace(c.Gateway.Token)
	if c.Gateway.Token == "" {
		if value, ok := os.LookupEnv("WARDEN_GATEWAY_TOKEN"); ok {
			c.Gateway.Token = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.SESRegion = strings.TrimSpace(c.Notifications.SESRegion)
	c.Notifications.SESFrom = strings.TrimSpace(c.Notifications.SESFrom)
	recipients := c.Notifications.SESTo[:0]
	for _, to := range c.Notifications.SESTo {
		if trimmed := strings.TrimSpace(to); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	c.Notifications.SESTo = recipients
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
