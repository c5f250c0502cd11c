package model

import "time"

// ReferenceDate is one date found in content fetched from an event's link
type ReferenceDate struct {
	Value          time.Time  `json:"value"`
	HasTime        bool       `json:"has_time"`        // Whether Value carries a time-of-day
	SourceKind     SourceKind `json:"source_kind"`     // Which extraction strategy produced it
	ConfidenceRank int        `json:"confidence_rank"` // Lower = more trusted
}

// SourceKind identifies the extraction strategy behind a reference date
type SourceKind string

const (
	SourceTimeTag  SourceKind = "structured-time-tag" // <time datetime="...">
	SourceLDJSON   SourceKind = "structured-ld-json"  // schema.org Event startDate/endDate
	SourceMetaTag  SourceKind = "meta-tag"            // <meta name="...date..." content="...">
	SourceFreeText SourceKind = "free-text-regex"     // Pattern match over visible text
)

// Rank returns the confidence rank of the source kind
func (k SourceKind) Rank() int {
	switch k {
	case SourceTimeTag:
		return 0
	case SourceLDJSON:
		return 1
	case SourceMetaTag:
		return 2
	default:
		return 3
	}
}

// Severity is the tier of a date discrepancy
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Accepts reports whether events at this severity pass the date gate
func (s Severity) Accepts() bool {
	switch s {
	case SeverityOK, SeverityMinor, SeverityModerate:
		return true
	default:
		return false
	}
}

// DiscrepancyAssessment compares a claimed event date to reference dates
type DiscrepancyAssessment struct {
	DeltaDays      *int       `json:"delta_days"`             // nil when no reference date was found
	Severity       Severity   `json:"severity"`
	Accepted       bool       `json:"accepted"`
	MatchedKind    SourceKind `json:"matched_kind,omitempty"` // Source of the closest reference
	ReferenceCount int        `json:"reference_count"`
}
