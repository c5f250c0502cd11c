package model

import "time"

// QualityScore is the transparent scoring breakdown of one event (all 0-10)
type QualityScore struct {
	PromptAdherence        float64  `json:"prompt_adherence"`
	LinkContentCorrelation float64  `json:"link_content_correlation"`
	DateTimePrecision      float64  `json:"date_time_precision"`
	Completeness           float64  `json:"completeness"`
	Overall                float64  `json:"overall"`
	Warnings               []string `json:"warnings,omitempty"` // Soft-penalty reasons
	Signals                []Signal `json:"signals,omitempty"`  // Per-component scoring data
}

// Signal carries the inputs and formula behind one sub-score
type Signal struct {
	Component   string                 `json:"component"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ValidatedEvent is the derived, scored view of an EventRecord
type ValidatedEvent struct {
	Event           EventRecord           `json:"event"`            // Normalized copy
	Assessment      DiscrepancyAssessment `json:"assessment"`
	Score           QualityScore          `json:"score"`
	Decision        Decision              `json:"decision"`
	RejectionReason *string               `json:"rejection_reason"` // nil when accepted
	LinkKind        LinkKind              `json:"link_kind"`
	ProcessedAt     time.Time             `json:"processed_at"`
}

// Rejection pairs a rejected input record with its reason
type Rejection struct {
	Event  EventRecord     `json:"event"`
	Reason RejectionReason `json:"reason"`
	Detail string          `json:"detail"` // Human-readable explanation
}

// Validated returns the rejection in ValidatedEvent shape, with Decision
// rejected and RejectionReason set. Assessment and score stay zero.
func (r Rejection) Validated() ValidatedEvent {
	reason := string(r.Reason)
	return ValidatedEvent{
		Event:           r.Event,
		Decision:        DecisionRejected,
		RejectionReason: &reason,
	}
}

// BatchResult is the output of one orchestrator run
type BatchResult struct {
	RunID      string           `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Accepted   []ValidatedEvent `json:"accepted"`
	Rejected   []Rejection      `json:"rejected"`
	Stats      BatchStats       `json:"stats"`
}

// Events returns every outcome as a ValidatedEvent, accepted first
func (r *BatchResult) Events() []ValidatedEvent {
	out := make([]ValidatedEvent, 0, r.Total())
	out = append(out, r.Accepted...)
	for _, rej := range r.Rejected {
		out = append(out, rej.Validated())
	}
	return out
}

// Total returns the number of events accounted for in the result
func (r *BatchResult) Total() int {
	return len(r.Accepted) + len(r.Rejected)
}

// BatchStats aggregates decisions across a batch
type BatchStats struct {
	Total         int                     `json:"total"`
	Accepted      int                     `json:"accepted"`
	Rejected      int                     `json:"rejected"`
	ByReason      map[RejectionReason]int `json:"by_reason,omitempty"`
	BySeverity    map[Severity]int        `json:"by_severity,omitempty"`
	FetchFailures int                     `json:"fetch_failures"`
	MeanOverall   float64                 `json:"mean_overall"`
	HighQuality   int                     `json:"high_quality"`   // overall >= 8
	MediumQuality int                     `json:"medium_quality"` // 5 <= overall < 8
	LowQuality    int                     `json:"low_quality"`    // overall < 5
}
