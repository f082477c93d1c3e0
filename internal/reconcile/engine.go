package reconcile

import (
	"math"
	"sort"

	"github.com/campusdata/enrich-cli/internal/model"
)

const (
	highConfidenceFloor  = 0.85
	highConfidenceMargin = 0.05
	consensusBoost       = 0.15
	clusterBoost         = 0.1
	clusterQuorum        = 0.6
)

// Engine applies the fixed reconciliation rule order to candidate sets.
type Engine struct {
	reliability map[string]int
}

// NewEngine creates an Engine. Pass nil to use the built-in reliability table.
func NewEngine(reliability map[string]int) *Engine {
	if reliability == nil {
		reliability = DefaultReliability()
	}
	return &Engine{reliability: reliability}
}

func (e *Engine) reliabilityOf(source string) int {
	if r, ok := e.reliability[source]; ok {
		return r
	}
	return unknownSourceReliability
}

// Reconcile resolves a candidate set for one field. Rules are evaluated in a
// fixed order: empty, single candidate, universal agreement, then for
// disagreement high-confidence override, statistical consensus (numeric
// fields), and finally the source-reliability fallback.
func (e *Engine) Reconcile(field model.Field, candidates []SourceValue) Result {
	switch len(candidates) {
	case 0:
		return Result{Field: field, Method: MethodEmpty}
	case 1:
		c := candidates[0]
		return Result{
			Field:      field,
			FinalValue: c.Value,
			Confidence: c.effectiveConfidence(),
			Method:     MethodSingleSource,
			SourceUsed: c.Source,
			Candidates: candidates,
		}
	}

	if allEqual(candidates) {
		best := e.mostReliable(candidates)
		maxConf := 0.0
		for _, c := range candidates {
			if conf := c.effectiveConfidence(); conf > maxConf {
				maxConf = conf
			}
		}
		return Result{
			Field:      field,
			FinalValue: best.Value,
			Confidence: capConfidence(maxConf + consensusBoost),
			Method:     MethodUniversalConsensus,
			SourceUsed: best.Source,
			Candidates: candidates,
		}
	}

	if r, ok := e.highConfidenceOverride(field, candidates); ok {
		return r
	}
	if model.IsNumeric(field) {
		if r, ok := e.statisticalConsensus(field, candidates); ok {
			return r
		}
	}
	return e.reliabilityFallback(field, candidates)
}

// highConfidenceOverride fires when the best candidate is confident enough
// (>= 0.85) and beats every other candidate by strictly more than 0.05. A
// margin of exactly 0.05 does not fire and evaluation falls through.
func (e *Engine) highConfidenceOverride(field model.Field, candidates []SourceValue) (Result, bool) {
	bestIdx := 0
	for i, c := range candidates {
		if c.effectiveConfidence() > candidates[bestIdx].effectiveConfidence() {
			bestIdx = i
		}
	}
	best := candidates[bestIdx]
	bestConf := best.effectiveConfidence()
	if bestConf < highConfidenceFloor {
		return Result{}, false
	}
	for i, c := range candidates {
		if i == bestIdx {
			continue
		}
		if bestConf-c.effectiveConfidence() <= highConfidenceMargin {
			return Result{}, false
		}
	}
	return Result{
		Field:            field,
		FinalValue:       best.Value,
		Confidence:       bestConf,
		Method:           MethodHighConfidence,
		SourceUsed:       best.Source,
		ConflictDetected: true,
		Candidates:       candidates,
	}, true
}

// statisticalConsensus clusters numeric candidates around their mean within
// the field's variance threshold. The cluster wins when it holds at least
// 60% of all candidates; the most reliable member supplies the value.
func (e *Engine) statisticalConsensus(field model.Field, candidates []SourceValue) (Result, bool) {
	type numericCandidate struct {
		sv SourceValue
		v  float64
	}
	var numeric []numericCandidate
	for _, c := range candidates {
		if v, ok := model.NumericValue(c.Value); ok {
			numeric = append(numeric, numericCandidate{sv: c, v: v})
		}
	}
	if len(numeric) < 2 {
		return Result{}, false
	}

	sum := 0.0
	for _, n := range numeric {
		sum += n.v
	}
	mean := sum / float64(len(numeric))

	threshold := model.VarianceThreshold(field)
	if threshold == 0 {
		threshold = math.Abs(mean) * 0.10
	}

	var cluster []SourceValue
	for _, n := range numeric {
		if math.Abs(n.v-mean) <= threshold {
			cluster = append(cluster, n.sv)
		}
	}
	if float64(len(cluster)) < clusterQuorum*float64(len(candidates)) {
		return Result{}, false
	}

	best := e.mostReliable(cluster)
	return Result{
		Field:            field,
		FinalValue:       best.Value,
		Confidence:       capConfidence(best.effectiveConfidence() + clusterBoost),
		Method:           MethodStatisticalConsensus,
		SourceUsed:       best.Source,
		ConflictDetected: true,
		Candidates:       candidates,
	}, true
}

// reliabilityFallback ranks candidates by source reliability, tie-broken by
// confidence and then recency.
func (e *Engine) reliabilityFallback(field model.Field, candidates []SourceValue) Result {
	ranked := make([]SourceValue, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := e.reliabilityOf(ranked[i].Source), e.reliabilityOf(ranked[j].Source)
		if ri != rj {
			return ri > rj
		}
		ci, cj := ranked[i].effectiveConfidence(), ranked[j].effectiveConfidence()
		if ci != cj {
			return ci > cj
		}
		return newerThan(ranked[i], ranked[j])
	})

	best := ranked[0]
	return Result{
		Field:            field,
		FinalValue:       best.Value,
		Confidence:       best.effectiveConfidence(),
		Method:           MethodSourceReliability,
		SourceUsed:       best.Source,
		ConflictDetected: true,
		Candidates:       candidates,
	}
}

func (e *Engine) mostReliable(candidates []SourceValue) SourceValue {
	best := candidates[0]
	for _, c := range candidates[1:] {
		rb, rc := e.reliabilityOf(best.Source), e.reliabilityOf(c.Source)
		if rc > rb || (rc == rb && c.effectiveConfidence() > best.effectiveConfidence()) {
			best = c
		}
	}
	return best
}

func allEqual(candidates []SourceValue) bool {
	for _, c := range candidates[1:] {
		if !valuesEqual(candidates[0].Value, c.Value) {
			return false
		}
	}
	return true
}

// valuesEqual compares candidate values, treating numerically equal values
// of different widths (int64 vs float64) as the same.
func valuesEqual(a, b any) bool {
	na, okA := model.NumericValue(a)
	nb, okB := model.NumericValue(b)
	if okA && okB {
		return na == nb
	}
	return a == b
}

func newerThan(a, b SourceValue) bool {
	if a.Timestamp == nil {
		return false
	}
	if b.Timestamp == nil {
		return true
	}
	return a.Timestamp.After(*b.Timestamp)
}

func capConfidence(c float64) float64 {
	if c > 1.0 {
		return 1.0
	}
	return c
}
