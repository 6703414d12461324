// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package config loads and validates Marketscope configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then environment variables (highest priority). All resilience knobs
// (rate limits, breaker thresholds, retry budgets, cache TTLs) live here so
// provider behavior is policy, not code.
package config

import (
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Providers    ProvidersConfig    `koanf:"providers"`
	Cache        CacheConfig        `koanf:"cache"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// ProvidersConfig groups the three external data providers.
type ProvidersConfig struct {
	Sidra  ProviderConfig `koanf:"sidra"`
	Trends ProviderConfig `koanf:"trends"`
	News   ProviderConfig `koanf:"news"`
}

// RateLimitPolicy selects what happens when the per-provider window budget
// is exhausted: wait (bounded by MaxWait) or fail immediately.
type RateLimitPolicy string

const (
	RateLimitWait RateLimitPolicy = "wait"
	RateLimitFail RateLimitPolicy = "fail"
)

// ProviderConfig holds the resilience policy for one external provider.
// The numeric defaults mirror observed provider behavior and are
// configuration, not hardcoded policy.
type ProviderConfig struct {
	BaseURL string `koanf:"base_url"`

	// Rate limiting: RatePerWindow calls per Window.
	RatePerWindow   int             `koanf:"rate_per_window"`
	Window          time.Duration   `koanf:"window"`
	RateLimitPolicy RateLimitPolicy `koanf:"rate_limit_policy"`
	MaxWait         time.Duration   `koanf:"max_wait"`

	// Circuit breaker.
	FailureThreshold uint32        `koanf:"circuit_failure_threshold"`
	RecoveryTimeout  time.Duration `koanf:"circuit_recovery_timeout"`

	// Retry with exponential backoff.
	MaxAttempts   int           `koanf:"retry_max_attempts"`
	BackoffFactor time.Duration `koanf:"backoff_factor"`
	MaxBackoff    time.Duration `koanf:"max_backoff"`

	// Cooldown429 is the fixed delay forced after an HTTP 429 response,
	// applied regardless of the backoff schedule.
	Cooldown429 time.Duration `koanf:"cooldown_429"`

	// HTTP timeouts.
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`

	// MinHostDelay spaces successive requests to the same host. Used by the
	// news scraper to respect target-site etiquette; zero disables it.
	MinHostDelay time.Duration `koanf:"min_host_delay"`

	// UserAgent identifies the client on outbound requests.
	UserAgent string `koanf:"user_agent"`

	// AllowedDomains restricts the news scraper to an explicit allow-list.
	AllowedDomains []string `koanf:"allowed_domains"`
}

// CacheConfig configures the shared response cache. TTLs are keyed by data
// category: census data moves yearly, economic indicators weekly.
type CacheConfig struct {
	MaxEntries     int           `koanf:"max_entries"`
	TTLDemographic time.Duration `koanf:"ttl_demographic"`
	TTLEconomic    time.Duration `koanf:"ttl_economic"`
	TTLSurvey      time.Duration `koanf:"ttl_survey"`
	TTLCensus      time.Duration `koanf:"ttl_census"`
	TTLMetadata    time.Duration `koanf:"ttl_metadata"`
	TTLDefault     time.Duration `koanf:"ttl_default"`
}

// OrchestratorConfig bounds a full multi-provider analysis run.
type OrchestratorConfig struct {
	// Deadline is the overall budget for one Run; providers that have not
	// settled by then are treated as failed.
	Deadline time.Duration `koanf:"deadline"`

	// InterestClampMax caps the search-interest multiplier.
	InterestClampMax float64 `koanf:"interest_clamp_max"`

	// SentimentClampMax caps the sentiment multiplier so compounded
	// multipliers stay bounded. Tunable, not a proven law.
	SentimentClampMax float64 `koanf:"sentiment_clamp_max"`

	// PartialConfidenceFloor is the confidence lower bound applied when at
	// least one provider succeeded but another degraded to partial.
	PartialConfidenceFloor float64 `koanf:"partial_confidence_floor"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8480,
			Timeout:         30 * time.Second,
			RateLimitReqs:   60,
			RateLimitWindow: time.Minute,
		},
		Providers: ProvidersConfig{
			// SIDRA tolerates ~10 calls/second; waiting out short bursts is
			// cheaper than failing them.
			Sidra: ProviderConfig{
				BaseURL:          "https://apisidra.ibge.gov.br",
				RatePerWindow:    10,
				Window:           time.Second,
				RateLimitPolicy:  RateLimitWait,
				MaxWait:          5 * time.Second,
				FailureThreshold: 5,
				RecoveryTimeout:  60 * time.Second,
				MaxAttempts:      5,
				BackoffFactor:    500 * time.Millisecond,
				MaxBackoff:       30 * time.Second,
				Cooldown429:      10 * time.Second,
				ConnectTimeout:   10 * time.Second,
				ReadTimeout:      25 * time.Second,
				UserAgent:        "marketscope/1.0 (+https://github.com/rcpassos/marketscope)",
			},
			// The search-interest provider is aggressively rate limited:
			// roughly one call per minute, with a forced 60s cooldown after
			// any 429.
			Trends: ProviderConfig{
				BaseURL:          "https://trends.google.com",
				RatePerWindow:    1,
				Window:           time.Minute,
				RateLimitPolicy:  RateLimitFail,
				MaxWait:          0,
				FailureThreshold: 5,
				RecoveryTimeout:  5 * time.Minute,
				MaxAttempts:      3,
				BackoffFactor:    100 * time.Millisecond,
				MaxBackoff:       60 * time.Second,
				Cooldown429:      60 * time.Second,
				ConnectTimeout:   10 * time.Second,
				ReadTimeout:      25 * time.Second,
				UserAgent:        "marketscope/1.0 (+https://github.com/rcpassos/marketscope)",
			},
			News: ProviderConfig{
				RatePerWindow:    30,
				Window:           time.Minute,
				RateLimitPolicy:  RateLimitFail,
				FailureThreshold: 5,
				RecoveryTimeout:  2 * time.Minute,
				MaxAttempts:      3,
				BackoffFactor:    time.Second,
				MaxBackoff:       30 * time.Second,
				Cooldown429:      30 * time.Second,
				ConnectTimeout:   10 * time.Second,
				ReadTimeout:      10 * time.Second,
				MinHostDelay:     2 * time.Second,
				UserAgent:        "marketscope/1.0 (+https://github.com/rcpassos/marketscope)",
				AllowedDomains: []string{
					"agenciabrasil.ebc.com.br",
					"agenciagov.ebc.com.br",
					"www.ibge.gov.br",
					"agenciadenoticias.ibge.gov.br",
				},
			},
		},
		Cache: CacheConfig{
			MaxEntries:     10000,
			TTLDemographic: 30 * 24 * time.Hour,
			TTLEconomic:    7 * 24 * time.Hour,
			TTLSurvey:      90 * 24 * time.Hour,
			TTLCensus:      365 * 24 * time.Hour,
			TTLMetadata:    24 * time.Hour,
			TTLDefault:     7 * 24 * time.Hour,
		},
		Orchestrator: OrchestratorConfig{
			Deadline:               90 * time.Second,
			InterestClampMax:       1.0,
			SentimentClampMax:      2.0,
			PartialConfidenceFloor: 0.1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
