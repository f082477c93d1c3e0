// Package reconcile resolves disagreement between enrichment sources and
// picks a single trusted value per field.
package reconcile

import (
	"time"

	"github.com/campusdata/enrich-cli/internal/model"
)

// DefaultConfidence is assumed for candidates whose source reported none.
const DefaultConfidence = 0.7

// Method identifies which rule produced a reconciliation result.
type Method string

const (
	MethodEmpty                Method = "empty"
	MethodSingleSource         Method = "single_source"
	MethodUniversalConsensus   Method = "universal_consensus"
	MethodHighConfidence       Method = "high_confidence"
	MethodStatisticalConsensus Method = "statistical_consensus"
	MethodSourceReliability    Method = "source_reliability"
)

// SourceValue is one candidate value for a field, as produced by a source.
// A zero Confidence means the source did not report one.
type SourceValue struct {
	Value      any        `json:"value"`
	Source     string     `json:"source"`
	Confidence float64    `json:"confidence,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// effectiveConfidence applies the default for unreported confidences.
func (sv SourceValue) effectiveConfidence() float64 {
	if sv.Confidence <= 0 {
		return DefaultConfidence
	}
	return sv.Confidence
}

// Result carries the reconciled value along with a full audit trail of the
// candidates considered and the rule that decided.
type Result struct {
	Field            model.Field   `json:"field"`
	FinalValue       any           `json:"final_value"`
	Confidence       float64       `json:"confidence"`
	Method           Method        `json:"method"`
	SourceUsed       string        `json:"source_used,omitempty"`
	ConflictDetected bool          `json:"conflict_detected"`
	Candidates       []SourceValue `json:"candidates,omitempty"`
}
