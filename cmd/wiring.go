package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campusdata/enrich-cli/internal/cache"
	"github.com/campusdata/enrich-cli/internal/enricher"
	"github.com/campusdata/enrich-cli/internal/fetcher"
	"github.com/campusdata/enrich-cli/internal/pipeline"
	"github.com/campusdata/enrich-cli/internal/reconcile"
	"github.com/campusdata/enrich-cli/internal/resilience"
	"github.com/campusdata/enrich-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "enrich.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// enrichmentStack bundles the shared components behind a single enrichment
// pass so commands can build them once.
type enrichmentStack struct {
	cache        *cache.FieldCache
	breakers     *resilience.SourceBreakers
	orchestrator *pipeline.Orchestrator
}

// initEnrichmentStack wires the HTTP client, resilience guard, source
// adapters, reconciliation engine, and field cache over the given store.
func initEnrichmentStack(st store.Store) (*enrichmentStack, error) {
	client := fetcher.NewHTTPClient(fetcher.HTTPOptions{})

	limits := make(map[string]resilience.LimitConfig, len(cfg.Sources.RateLimits))
	for source, rl := range cfg.Sources.RateLimits {
		limits[source] = resilience.LimitConfig{RPS: rl.RPS, Burst: rl.Burst}
	}
	limiters := resilience.NewSourceLimiters(limits)

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	if cfg.Breaker.FailureThreshold > 0 {
		breakerCfg.FailureThreshold = cfg.Breaker.FailureThreshold
	}
	if cfg.Breaker.RecoveryTimeoutSecs > 0 {
		breakerCfg.RecoveryTimeout = time.Duration(cfg.Breaker.RecoveryTimeoutSecs) * time.Second
	}
	breakers := resilience.NewSourceBreakers(breakerCfg)

	retryCfg := resilience.DefaultRetryConfig()
	if cfg.Retry.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if cfg.Retry.InitialBackoffMs > 0 {
		retryCfg.InitialBackoff = time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond
	}
	if cfg.Retry.MaxBackoffMs > 0 {
		retryCfg.MaxBackoff = time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond
	}
	if cfg.Retry.Multiplier > 0 {
		retryCfg.Multiplier = cfg.Retry.Multiplier
	}

	politeness := time.Duration(cfg.Sources.PolitenessMillis) * time.Millisecond
	guard := enricher.NewGuard(limiters, breakers, retryCfg, politeness)

	enrichers := []enricher.Enricher{
		enricher.NewScorecard(client, guard, cfg.Scorecard.BaseURL, cfg.Scorecard.Key),
		enricher.NewKnowledge(client, guard, cfg.Knowledge.BaseURL),
		enricher.NewWikipedia(client, guard, cfg.Wikipedia.BaseURL),
		enricher.NewWebSearch(client, guard, cfg.WebSearch.BaseURL),
		enricher.NewWebsite(client, guard),
	}

	reliability := reconcile.DefaultReliability()
	if cfg.Reconcile.ReliabilityPath != "" {
		rc, err := reconcile.LoadConfig(cfg.Reconcile.ReliabilityPath)
		if err != nil {
			return nil, eris.Wrap(err, "load reliability config")
		}
		reliability = rc.Reliability
	}
	engine := reconcile.NewEngine(reliability)

	fc := cache.New(st)
	return &enrichmentStack{
		cache:        fc,
		breakers:     breakers,
		orchestrator: pipeline.New(st, fc, engine, enrichers),
	}, nil
}
