package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateResearch(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := validateGatewayURL("transcription.base_url", c.Transcription.BaseURL); err != nil {
		return err
	}
	if err := validateGatewayURL("research.base_url", c.Research.BaseURL); err != nil {
		return err
	}
	if err := c.validateRedis(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
		"research.timeout_seconds":      c.Research.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateResearch() error {
	switch c.Research.Provider {
	case ResearchProviderService:
	case ResearchProviderPerplexity:
		if c.Research.Model == "" {
			return errors.New("research.model must be set when research.provider is perplexity")
		}
	default:
		return fmt.Errorf("research.provider must be %q or %q, got %q", ResearchProviderService, ResearchProviderPerplexity, c.Research.Provider)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	if err := ensurePositiveMap(map[string]int{
		"dispatch.workers":           c.Dispatch.Workers,
		"dispatch.queue_size":        c.Dispatch.QueueSize,
		"dispatch.token_ttl_seconds": c.Dispatch.TokenTTLSeconds,
	}); err != nil {
		return err
	}
	// A token must outlive the longest step it guards.
	longest := max(c.Transcription.TimeoutSeconds, c.Research.TimeoutSeconds)
	if c.Dispatch.TokenTTLSeconds <= longest+tokenTTLMarginSeconds {
		return fmt.Errorf("dispatch.token_ttl_seconds must exceed the longest step timeout (%ds) by more than %ds, got %d",
			longest, tokenTTLMarginSeconds, c.Dispatch.TokenTTLSeconds)
	}
	switch c.Dispatch.TokenBackend {
	case TokenBackendMemory:
	case TokenBackendRedis:
		if !c.RedisEnabled() {
			return errors.New("redis.url must be set when dispatch.token_backend is redis (or set REDIS_URL)")
		}
	default:
		return fmt.Errorf("dispatch.token_backend must be %q or %q, got %q", TokenBackendMemory, TokenBackendRedis, c.Dispatch.TokenBackend)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.RedisEnabled() {
		return nil
	}
	parsed, err := url.Parse(c.Redis.URL)
	if err != nil {
		return fmt.Errorf("redis.url: %w", err)
	}
	if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
		return fmt.Errorf("redis.url must use redis:// or rediss://, got %q", c.Redis.URL)
	}
	return nil
}

func validateGatewayURL(key, value string) error {
	if value == "" {
		return nil
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http or https URL, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host, got %q", key, value)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
