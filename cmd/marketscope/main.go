// Marketscope - Market Segment Aggregation and Psychographic Inference
// Copyright 2026 R. C. Passos (rcpassos)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcpassos/marketscope

// Package main is the entry point for the Marketscope server.
//
// Marketscope aggregates Brazilian socioeconomic statistics, search-interest
// series and public-sector news to estimate the size and psychographic
// profile of a described market segment.
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, YAML, env)
//  2. Logging: global zerolog logger
//  3. Response cache: TTL-by-category LRU shared by all providers
//  4. Provider clients: one resilient remote client per provider
//     (circuit breaker, rate limiter, retry with backoff)
//  5. Orchestrator and psychographic analyzer
//  6. HTTP server under a suture supervision tree
//
// Configuration can be overridden with MARKETSCOPE_-prefixed environment
// variables, for example:
//
//	export MARKETSCOPE_SERVER_PORT=8480
//	export MARKETSCOPE_LOGGING_LEVEL=debug
//	./marketscope
//
// The server shuts down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rcpassos/marketscope/internal/api"
	"github.com/rcpassos/marketscope/internal/cache"
	"github.com/rcpassos/marketscope/internal/config"
	"github.com/rcpassos/marketscope/internal/logging"
	"github.com/rcpassos/marketscope/internal/mapper"
	"github.com/rcpassos/marketscope/internal/models"
	"github.com/rcpassos/marketscope/internal/orchestrator"
	"github.com/rcpassos/marketscope/internal/providers"
	"github.com/rcpassos/marketscope/internal/psychographic"
	"github.com/rcpassos/marketscope/internal/remote"
	"github.com/rcpassos/marketscope/internal/supervisor"
)

// newsLookbackDays is the default recency window for scraped articles.
const newsLookbackDays = 30

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)).Msg("starting marketscope")

	store := cache.New(cfg.Cache.MaxEntries, cache.TTLTable{
		Demographic: cfg.Cache.TTLDemographic,
		Economic:    cfg.Cache.TTLEconomic,
		Survey:      cfg.Cache.TTLSurvey,
		Census:      cfg.Cache.TTLCensus,
		Metadata:    cfg.Cache.TTLMetadata,
		Default:     cfg.Cache.TTLDefault,
	})

	sidra := providers.NewSidraAdapter(cfg.Providers.Sidra.BaseURL)
	trends := providers.NewTrendsAdapter(cfg.Providers.Trends.BaseURL)
	news := providers.NewNewsAdapter(cfg.Providers.News.AllowedDomains)

	adapters := map[models.Provider]providers.Adapter{
		models.ProviderSidra:  sidra,
		models.ProviderTrends: trends,
		models.ProviderNews:   news,
	}
	fetchers := map[models.Provider]orchestrator.Fetcher{
		models.ProviderSidra:  remote.NewClient(models.ProviderSidra, cfg.Providers.Sidra, store, sidra.BuildRequest),
		models.ProviderTrends: remote.NewClient(models.ProviderTrends, cfg.Providers.Trends, store, trends.BuildRequest),
		models.ProviderNews:   remote.NewClient(models.ProviderNews, cfg.Providers.News, store, news.BuildRequest),
	}

	plan := mapper.New(cfg.Providers.News.AllowedDomains, newsLookbackDays)
	orch := orchestrator.New(cfg.Orchestrator, fetchers, adapters)
	handler := api.NewHandler(plan, orch, psychographic.New())

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(cfg.Server, handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Analyze responses cannot settle before the orchestrator deadline.
		WriteTimeout: cfg.Orchestrator.Deadline + 10*time.Second,
	}

	// suture logs supervision events through slog.
	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.Timeout))
	tree.AddMaintenanceService(supervisor.NewCacheJanitor(store, time.Hour))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree exited")
		os.Exit(1)
	}
	logging.Info().Msg("marketscope stopped")
}
