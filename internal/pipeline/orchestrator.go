// Package pipeline orchestrates one institution's enrichment pass: cache
// lookup, prioritized source calls, reconciliation, selective write-back.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/cache"
	"github.com/campusdata/enrich-cli/internal/enricher"
	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/reconcile"
	"github.com/campusdata/enrich-cli/internal/store"
)

// sourceConfidence is the confidence attached to values by origin when they
// enter reconciliation. Structured APIs rank above free-text mining.
var sourceConfidence = map[string]float64{
	enricher.SourceScorecard: 0.95,
	enricher.SourceKnowledge: 0.85,
	enricher.SourceWebsite:   0.8,
	enricher.SourceWikipedia: 0.7,
	enricher.SourceWebSearch: 0.5,
}

// Orchestrator drives the enrichment of single institution records.
type Orchestrator struct {
	store     store.Store
	cache     *cache.FieldCache
	engine    *reconcile.Engine
	enrichers []enricher.Enricher
}

// New creates an Orchestrator. Enrichers are consulted in priority order
// regardless of the order given here.
func New(st store.Store, fc *cache.FieldCache, engine *reconcile.Engine, enrichers []enricher.Enricher) *Orchestrator {
	return &Orchestrator{
		store:     st,
		cache:     fc,
		engine:    engine,
		enrichers: enricher.ByPriority(enrichers),
	}
}

// Enrich fills the currently-missing fields of one record. Cached values are
// used first; remaining fields trigger source calls in priority order, which
// stop once every open field has at least one candidate. Fields answered by
// several sources in the pass are reconciled before write-back. Only fields
// that were nil going in are ever written; the returned map holds the fields
// filled and their final values.
func (o *Orchestrator) Enrich(ctx context.Context, u *model.University) (map[model.Field]any, int, error) {
	missing := u.MissingFields()
	if len(missing) == 0 {
		return nil, 0, nil
	}

	log := zap.L().With(zap.Int64("university_id", u.ID), zap.String("name", u.Name))

	filled := make(map[model.Field]any)
	cached, err := o.cache.Get(ctx, u.ID, missing)
	if err != nil {
		// A broken cache degrades to a full fetch.
		log.Warn("cache lookup failed", zap.Error(err))
		cached = nil
	}
	for f, entry := range cached {
		filled[f] = entry.Value
	}

	// pending tracks missing fields with no answer yet; it decides whether
	// another source call is still worth issuing.
	pending := make(map[model.Field]bool, len(missing))
	for _, f := range missing {
		if _, ok := filled[f]; !ok {
			pending[f] = true
		}
	}

	candidates := make(map[model.Field][]reconcile.SourceValue)
	for _, en := range o.enrichers {
		if len(pending) == 0 {
			break
		}
		if !en.Applies(u) {
			continue
		}

		fm, err := en.Enrich(ctx, u)
		if err != nil {
			// A degraded source contributes nothing; the pass continues.
			log.Warn("source enrichment failed",
				zap.String("source", en.Name()),
				zap.Error(err))
		}
		if len(fm) == 0 {
			continue
		}

		o.cache.PutMany(ctx, u.ID, map[model.Field]any(fm), en.Name())

		for f, v := range fm {
			if _, fromCache := filled[f]; fromCache {
				continue
			}
			if !fieldInSet(missing, f) {
				continue
			}
			candidates[f] = append(candidates[f], reconcile.SourceValue{
				Value:      v,
				Source:     en.Name(),
				Confidence: sourceConfidence[en.Name()],
			})
			delete(pending, f)
		}
	}

	for f, cands := range candidates {
		res := o.engine.Reconcile(f, cands)
		if res.FinalValue == nil {
			continue
		}
		if res.ConflictDetected {
			log.Debug("reconciled conflicting candidates",
				zap.String("field", string(f)),
				zap.String("method", string(res.Method)),
				zap.String("source", res.SourceUsed),
				zap.Int("candidates", len(res.Candidates)))
		}
		filled[f] = res.FinalValue
	}

	if len(filled) == 0 {
		return nil, 0, nil
	}

	if err := o.store.UpdateUniversityFields(ctx, u.ID, filled); err != nil {
		return nil, 0, eris.Wrapf(err, "pipeline: write back university %d", u.ID)
	}

	log.Info("university enriched", zap.Int("fields_filled", len(filled)))
	return filled, len(filled), nil
}

func fieldInSet(set []model.Field, f model.Field) bool {
	for _, s := range set {
		if s == f {
			return true
		}
	}
	return false
}
