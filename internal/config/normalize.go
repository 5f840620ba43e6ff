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
	c.normalizeTranscription()
	c.normalizeResearch()
	c.normalizeDispatch()
	c.normalizeRedis()
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
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CLIPDRAFT_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeTranscription() {
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		if value, ok := os.LookupEnv("TRANSCRIPTION_BASE_URL"); ok {
			c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(value), "/")
		}
	}
}

func (c *Config) normalizeResearch() {
	c.Research.Provider = strings.ToLower(strings.TrimSpace(c.Research.Provider))
	if c.Research.Provider == "" {
		c.Research.Provider = defaultResearchProvider
	}
	c.Research.BaseURL = strings.TrimRight(strings.TrimSpace(c.Research.BaseURL), "/")
	c.Research.Model = strings.TrimSpace(c.Research.Model)
	if c.Research.Provider == ResearchProviderPerplexity {
		if c.Research.BaseURL == "" {
			c.Research.BaseURL = defaultPerplexityBaseURL
		}
		if c.Research.Model == "" {
			c.Research.Model = defaultPerplexityModel
		}
	}
	c.Research.Referer = strings.TrimSpace(c.Research.Referer)
	if c.Research.Referer == "" {
		c.Research.Referer = defaultResearchReferer
	}
	c.Research.Title = strings.TrimSpace(c.Research.Title)
	if c.Research.Title == "" {
		c.Research.Title = defaultResearchTitle
	}
	c.Research.APIKey = strings.TrimSpace(c.Research.APIKey)
	if c.Research.APIKey == "" {
		if value, ok := os.LookupEnv("RESEARCH_API_KEY"); ok {
			c.Research.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("PERPLEXITY_API_KEY"); ok {
			c.Research.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeDispatch() {
	c.Dispatch.TokenBackend = strings.ToLower(strings.TrimSpace(c.Dispatch.TokenBackend))
	if c.Dispatch.TokenBackend == "" {
		c.Dispatch.TokenBackend = defaultTokenBackend
	}
	if c.Dispatch.TokenTTLSeconds <= 0 {
		c.Dispatch.TokenTTLSeconds = defaultTokenTTLSeconds
	}
	if c.Dispatch.SweepIntervalSeconds <= 0 {
		c.Dispatch.SweepIntervalSeconds = defaultSweepIntervalSeconds
	}
}

func (c *Config) normalizeRedis() {
	c.Redis.URL = strings.TrimSpace(c.Redis.URL)
	if c.Redis.URL == "" {
		if value, ok := os.LookupEnv("REDIS_URL"); ok {
			c.Redis.URL = strings.TrimSpace(value)
		}
	}
	c.Redis.Stream = strings.TrimSpace(c.Redis.Stream)
	if c.Redis.Stream == "" {
		c.Redis.Stream = defaultRedisStream
	}
	if c.Redis.StreamMaxLen <= 0 {
		c.Redis.StreamMaxLen = defaultRedisStreamMaxLen
	}
	c.Redis.KeyPrefix = strings.Trim(strings.TrimSpace(c.Redis.KeyPrefix), ":")
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = defaultRedisKeyPrefix
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
