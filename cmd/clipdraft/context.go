package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clipdraft/internal/api"
	"clipdraft/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
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
		cfg, path, _, err := config.Load(c.configFlagValue())
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configFlagValue() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// apiAddress returns --api when given, otherwise paths.api_bind.
func (c *commandContext) apiAddress() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return strings.TrimSpace(*c.apiFlag)
	}
	if cfg, err := c.ensureConfig(); err == nil && cfg != nil {
		return cfg.Paths.APIBind
	}
	return ""
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	addr := c.apiAddress()
	client, err := api.NewClient(addr, cfg.Paths.APIToken)
	if err != nil {
		return wrapDialError(err, addr)
	}
	if err := fn(client); err != nil {
		return wrapDialError(err, addr)
	}
	return nil
}

func wrapDialError(err error, addr string) error {
	switch {
	case errors.Is(err, api.ErrAPIUnavailable) && strings.TrimSpace(addr) == "":
		return errors.New("connect to daemon: no API address; set paths.api_bind or pass --api")
	case api.IsAPIUnavailable(err):
		return fmt.Errorf("connect to daemon: nothing answered at %s; start the daemon with `clipdraft serve`", addr)
	default:
		return err
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
