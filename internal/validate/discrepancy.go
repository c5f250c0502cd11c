package validate

import (
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

// Severity band upper bounds in days (inclusive)
const (
	OKMaxDays       = 7
	MinorMaxDays    = 14
	ModerateMaxDays = 30
	SevereMaxDays   = 180
)

// ClassifyDiscrepancy compares a claimed event date against reference dates.
//
// The closest reference wins; on equal distance the more trusted source
// (lower ConfidenceRank) is reported. No references means the date cannot be
// contradicted and is accepted with a nil delta.
func ClassifyDiscrepancy(eventDate time.Time, refs []model.ReferenceDate) model.DiscrepancyAssessment {
	assessment := model.DiscrepancyAssessment{
		Severity:       model.SeverityOK,
		Accepted:       true,
		ReferenceCount: len(refs),
	}
	if len(refs) == 0 {
		return assessment
	}

	best := -1
	bestRank := 0
	var bestKind model.SourceKind
	for _, ref := range refs {
		d := DeltaDays(eventDate, ref.Value)
		if best < 0 || d < best || (d == best && ref.ConfidenceRank < bestRank) {
			best = d
			bestRank = ref.ConfidenceRank
			bestKind = ref.SourceKind
		}
	}

	assessment.DeltaDays = &best
	assessment.MatchedKind = bestKind
	assessment.Severity = SeverityFor(best)
	assessment.Accepted = assessment.Severity.Accepts()
	return assessment
}

// SeverityFor maps an absolute day delta to its severity band
func SeverityFor(deltaDays int) model.Severity {
	switch {
	case deltaDays <= OKMaxDays:
		return model.SeverityOK
	case deltaDays <= MinorMaxDays:
		return model.SeverityMinor
	case deltaDays <= ModerateMaxDays:
		return model.SeverityModerate
	case deltaDays <= SevereMaxDays:
		return model.SeveritySevere
	default:
		return model.SeverityCritical
	}
}

// DeltaDays returns the absolute calendar-day distance between two dates,
// ignoring time of day and zone
func DeltaDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(db.Sub(da).Hours() / 24)
	if d < 0 {
		return -d
	}
	return d
}
