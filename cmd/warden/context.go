package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"warden/internal/api"
	"warden/internal/config"
	"warden/internal/logging"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr
		}
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.APIBaseURL()
	}
	return ""
}

func (c *commandContext) newClient() (*api.Client, error) {
	var token string
	if cfg := c.configValue(); cfg != nil {
		token = cfg.API.Token
	}
	return api.NewClient(c.apiAddress(), token)
}

// withClient runs fn against the daemon API and rewrites connection
// failures into an actionable message.
func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.newClient()
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		return wrapClientError(err, c.apiAddress())
	}
	return nil
}

// cliLogger returns the logger used by commands that run components
// in-process.
func (c *commandContext) cliLogger() *slog.Logger {
	logger, err := logging.NewFromConfig(c.configValue())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: %v\n", err)
		return logging.NewNop()
	}
	return logger
}

func wrapClientError(err error, addr string) error {
	if api.IsUnavailable(err) {
		return fmt.Errorf("connect to daemon: no warden daemon answered at %s; start it with `warden run`", addr)
	}
	return err
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// operatorName picks the actor recorded for administrative actions.
func operatorName(flagValue string) string {
	if name := strings.TrimSpace(flagValue); name != "" {
		return name
	}
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	return "cli"
}
