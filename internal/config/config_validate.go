// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

package config

import (
	"fmt"
	"net/url"
)

// Validate checks that the configuration is internally consistent.
// Called once at startup; an error here aborts the process.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.Providers.Sidra.validate("providers.sidra"); err != nil {
		return err
	}
	if err := c.Providers.Trends.validate("providers.trends"); err != nil {
		return err
	}
	if err := c.Providers.News.validate("providers.news"); err != nil {
		return err
	}
	if len(c.Providers.News.AllowedDomains) == 0 {
		return fmt.Errorf("providers.news.allowed_domains must not be empty: the scraper refuses to run without an allow-list")
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	return c.validateOrchestrator()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (p *ProviderConfig) validate(name string) error {
	if p.BaseURL != "" {
		u, err := url.Parse(p.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s.base_url is not a valid http(s) URL: %q", name, p.BaseURL)
		}
	}
	if p.RatePerWindow <= 0 {
		return fmt.Errorf("%s.rate_per_window must be positive, got %d", name, p.RatePerWindow)
	}
	if p.Window <= 0 {
		return fmt.Errorf("%s.window must be positive, got %s", name, p.Window)
	}
	switch p.RateLimitPolicy {
	case RateLimitWait:
		if p.MaxWait <= 0 {
			return fmt.Errorf("%s.max_wait must be positive when rate_limit_policy=wait", name)
		}
	case RateLimitFail:
	default:
		return fmt.Errorf("%s.rate_limit_policy must be %q or %q, got %q",
			name, RateLimitWait, RateLimitFail, p.RateLimitPolicy)
	}
	if p.FailureThreshold == 0 {
		return fmt.Errorf("%s.circuit_failure_threshold must be positive", name)
	}
	if p.RecoveryTimeout <= 0 {
		return fmt.Errorf("%s.circuit_recovery_timeout must be positive, got %s", name, p.RecoveryTimeout)
	}
	if p.MaxAttempts < 1 {
		return fmt.Errorf("%s.retry_max_attempts must be at least 1, got %d", name, p.MaxAttempts)
	}
	if p.BackoffFactor < 0 {
		return fmt.Errorf("%s.backoff_factor must not be negative, got %s", name, p.BackoffFactor)
	}
	if p.MaxBackoff <= 0 {
		return fmt.Errorf("%s.max_backoff must be positive, got %s", name, p.MaxBackoff)
	}
	if p.ConnectTimeout <= 0 || p.ReadTimeout <= 0 {
		return fmt.Errorf("%s connect/read timeouts must be positive", name)
	}
	if p.UserAgent == "" {
		return fmt.Errorf("%s.user_agent must identify the client", name)
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	ttls := map[string]int64{
		"cache.ttl_demographic": int64(c.Cache.TTLDemographic),
		"cache.ttl_economic":    int64(c.Cache.TTLEconomic),
		"cache.ttl_survey":      int64(c.Cache.TTLSurvey),
		"cache.ttl_census":      int64(c.Cache.TTLCensus),
		"cache.ttl_metadata":    int64(c.Cache.TTLMetadata),
		"cache.ttl_default":     int64(c.Cache.TTLDefault),
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateOrchestrator() error {
	o := c.Orchestrator
	if o.Deadline <= 0 {
		return fmt.Errorf("orchestrator.deadline must be positive, got %s", o.Deadline)
	}
	if o.InterestClampMax <= 0 {
		return fmt.Errorf("orchestrator.interest_clamp_max must be positive, got %f", o.InterestClampMax)
	}
	if o.SentimentClampMax < 1 {
		return fmt.Errorf("orchestrator.sentiment_clamp_max must be at least 1, got %f", o.SentimentClampMax)
	}
	if o.PartialConfidenceFloor < 0 || o.PartialConfidenceFloor > 1 {
		return fmt.Errorf("orchestrator.partial_confidence_floor must be in [0,1], got %f", o.PartialConfidenceFloor)
	}
	return nil
}
