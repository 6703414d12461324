// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package remote implements the resilient transport wrapper shared by all
// provider adapters. One Client owns the per-provider cache keys, rate
// limiter, circuit breaker and retry schedule; adapters only build requests
// and parse responses.
//
// Fetch order of operations: cache, circuit breaker, rate limiter, HTTP call
// with retry. A cache hit makes zero network calls. An open breaker fails
// fast with no retry. Identical in-flight fetches coalesce into one call.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rcpassos/marketscope/internal/cache"
	"github.com/rcpassos/marketscope/internal/config"
	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/metrics"
	"github.com/rcpassos/marketscope/internal/models"
)

// RequestBuilder turns a QuerySpec into the provider-specific HTTP request.
// Supplied by each provider adapter at Client construction.
type RequestBuilder func(ctx context.Context, spec models.QuerySpec) (*http.Request, error)

// maxResponseBytes caps provider response bodies.
const maxResponseBytes = 8 << 20

// Client is the resilient remote client for one provider.
type Client struct {
	name  models.Provider
	cfg   config.ProviderConfig
	build RequestBuilder

	store      *cache.ResponseCache
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[models.RawResponse]
	limiter    *rate.Limiter
	group      singleflight.Group

	// sleep is the delay primitive for backoff, cooldown and host spacing.
	// Replaceable in tests so retry schedules can be asserted without
	// real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	hostMu   sync.Mutex
	hostNext map[string]time.Time

	log zerolog.Logger
}

// NewClient builds a Client for one provider using its configured policy.
func NewClient(name models.Provider, cfg config.ProviderConfig, store *cache.ResponseCache, build RequestBuilder) *Client {
	c := &Client{
		name:  name,
		cfg:   cfg,
		build: build,
		store: store,
		httpClient: &http.Client{
			Timeout: cfg.ReadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
				MaxIdleConnsPerHost: 4,
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(float64(cfg.RatePerWindow)/cfg.Window.Seconds()), cfg.RatePerWindow),
		sleep:    sleepContext,
		hostNext: make(map[string]time.Time),
		log:      logging.With().Str("provider", string(name)).Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(string(name)).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[models.RawResponse](gobreaker.Settings{
		Name:        string(name),
		MaxRequests: 1,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(bname string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(bname, from.String(), to.String(), stateToFloat(to))
		},
	})

	return c
}

// Fetch resolves one QuerySpec, consulting the cache first and coalescing
// concurrent identical fetches. Failure modes: ErrRateLimited,
// ErrCircuitOpen, ErrTimeout (wrapped) or *ProviderError after the retry
// budget is spent.
func (c *Client) Fetch(ctx context.Context, spec models.QuerySpec) (models.RawResponse, error) {
	key := spec.CacheKey()

	if resp, ok := c.store.Get(key); ok {
		c.log.Debug().Str("key", key).Msg("cache hit")
		return resp, nil
	}

	// The coalesced flight must not die with whichever caller started it,
	// so it runs on a detached context while every caller waits under its
	// own. The flight stays bounded by the HTTP timeouts and the retry
	// budget, and a late success still lands in the cache.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A previous flight may have settled between the lookup above and
		// joining this group.
		if resp, ok := c.store.Get(key); ok {
			return resp, nil
		}
		return c.fetchWithRetry(flightCtx, spec, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.RawResponse{}, res.Err
		}
		return res.Val.(models.RawResponse), nil
	case <-ctx.Done():
		return models.RawResponse{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// fetchWithRetry runs the attempt loop for one uncached spec.
func (c *Client) fetchWithRetry(ctx context.Context, spec models.QuerySpec, key string) (models.RawResponse, error) {
	start := time.Now()
	var lastErr error
	lastStatus := 0

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.backoff(attempt - 1)
			if lastStatus == http.StatusTooManyRequests {
				// A 429 overrides the backoff schedule with the provider's
				// fixed cooldown.
				delay = c.cfg.Cooldown429
				metrics.ProviderCooldowns.WithLabelValues(string(c.name)).Inc()
				c.log.Warn().Dur("cooldown", delay).Int("attempt", attempt).Msg("rate limit response, cooling down")
			}
			metrics.ProviderRetries.WithLabelValues(string(c.name)).Inc()
			if err := c.sleep(ctx, delay); err != nil {
				metrics.RecordProviderRequest(string(c.name), "timeout", time.Since(start))
				return models.RawResponse{}, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
		}

		if c.breaker.State() == gobreaker.StateOpen {
			metrics.RecordProviderRequest(string(c.name), "circuit_open", time.Since(start))
			return models.RawResponse{}, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
		}

		if err := c.waitRateLimit(ctx); err != nil {
			metrics.RecordProviderRequest(string(c.name), "rate_limited", time.Since(start))
			return models.RawResponse{}, err
		}

		resp, err := c.breaker.Execute(func() (models.RawResponse, error) {
			return c.do(ctx, spec)
		})
		if err == nil {
			c.store.Put(key, spec.Category, resp)
			metrics.RecordProviderRequest(string(c.name), "success", time.Since(start))
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordProviderRequest(string(c.name), "circuit_open", time.Since(start))
			return models.RawResponse{}, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
		}

		lastErr = err
		lastStatus = 0
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			lastStatus = statusErr.status
			if !retryable(statusErr.status) {
				metrics.RecordProviderRequest(string(c.name), "error", time.Since(start))
				return models.RawResponse{}, &ProviderError{
					Provider:   c.name,
					Attempts:   attempt,
					StatusCode: statusErr.status,
					Err:        err,
				}
			}
		}
		c.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.cfg.MaxAttempts).Msg("provider call failed")
	}

	outcome := "error"
	if errors.Is(lastErr, ErrTimeout) {
		outcome = "timeout"
	}
	metrics.RecordProviderRequest(string(c.name), outcome, time.Since(start))
	return models.RawResponse{}, &ProviderError{
		Provider:   c.name,
		Attempts:   c.cfg.MaxAttempts,
		StatusCode: lastStatus,
		Err:        lastErr,
	}
}

// backoff returns the exponential delay after the given failed attempt,
// capped at MaxBackoff.
func (c *Client) backoff(failedAttempt int) time.Duration {
	delay := c.cfg.BackoffFactor << (failedAttempt - 1)
	if c.cfg.BackoffFactor > 0 && (delay <= 0 || delay > c.cfg.MaxBackoff) {
		// Shift overflow lands here too.
		delay = c.cfg.MaxBackoff
	}
	return delay
}

// waitRateLimit applies the provider's budget policy: wait bounded by
// MaxWait, or fail immediately with ErrRateLimited.
func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.cfg.RateLimitPolicy == config.RateLimitWait {
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.MaxWait)
		defer cancel()
		if err := c.limiter.Wait(waitCtx); err != nil {
			return fmt.Errorf("%s: %w", c.name, ErrRateLimited)
		}
		return nil
	}
	if !c.limiter.Allow() {
		return fmt.Errorf("%s: %w", c.name, ErrRateLimited)
	}
	return nil
}

// do issues one HTTP call and converts the response to a RawResponse.
func (c *Client) do(ctx context.Context, spec models.QuerySpec) (models.RawResponse, error) {
	req, err := c.build(ctx, spec)
	if err != nil {
		return models.RawResponse{}, fmt.Errorf("build request: %w", err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	if err := c.waitHostGate(ctx, req.URL.Hostname()); err != nil {
		return models.RawResponse{}, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return models.RawResponse{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return models.RawResponse{}, fmt.Errorf("http request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return models.RawResponse{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return models.RawResponse{}, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return models.RawResponse{}, &httpStatusError{status: res.StatusCode}
	}

	return models.RawResponse{
		Provider:   spec.Provider,
		Category:   spec.Category,
		URL:        req.URL.String(),
		StatusCode: res.StatusCode,
		Body:       body,
		FetchedAt:  time.Now(),
	}, nil
}

// waitHostGate spaces successive requests to the same host by MinHostDelay.
// Each caller reserves the next slot under the lock, then sleeps without it.
func (c *Client) waitHostGate(ctx context.Context, host string) error {
	if c.cfg.MinHostDelay <= 0 {
		return nil
	}

	c.hostMu.Lock()
	now := time.Now()
	next := c.hostNext[host]
	var wait time.Duration
	if next.After(now) {
		wait = next.Sub(now)
		c.hostNext[host] = next.Add(c.cfg.MinHostDelay)
	} else {
		c.hostNext[host] = now.Add(c.cfg.MinHostDelay)
	}
	c.hostMu.Unlock()

	if wait > 0 {
		return c.sleep(ctx, wait)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
