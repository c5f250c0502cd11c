package validate

import (
	"testing"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ref(t time.Time, kind model.SourceKind) model.ReferenceDate {
	return model.ReferenceDate{Value: t, SourceKind: kind, ConfidenceRank: kind.Rank()}
}

func TestClassifyDiscrepancy_NoReferences(t *testing.T) {
	a := ClassifyDiscrepancy(date(2025, 11, 15), nil)

	if a.DeltaDays != nil {
		t.Errorf("Expected nil delta, got %d", *a.DeltaDays)
	}
	if a.Severity != model.SeverityOK || !a.Accepted {
		t.Errorf("Expected ok/accepted, got %s/%v", a.Severity, a.Accepted)
	}
}

func TestClassifyDiscrepancy_Bands(t *testing.T) {
	event := date(2025, 1, 1)

	tests := []struct {
		delta    int
		severity model.Severity
		accepted bool
	}{
		{0, model.SeverityOK, true},
		{7, model.SeverityOK, true},
		{8, model.SeverityMinor, true},
		{14, model.SeverityMinor, true},
		{15, model.SeverityModerate, true},
		{30, model.SeverityModerate, true},
		{31, model.SeveritySevere, false},
		{180, model.SeveritySevere, false},
		{181, model.SeverityCritical, false},
		{400, model.SeverityCritical, false},
	}

	for _, tt := range tests {
		refDate := event.AddDate(0, 0, tt.delta)
		a := ClassifyDiscrepancy(event, []model.ReferenceDate{ref(refDate, model.SourceFreeText)})

		if a.DeltaDays == nil || *a.DeltaDays != tt.delta {
			t.Fatalf("delta %d: got %v", tt.delta, a.DeltaDays)
		}
		if a.Severity != tt.severity {
			t.Errorf("delta %d: expected %s, got %s", tt.delta, tt.severity, a.Severity)
		}
		if a.Accepted != tt.accepted {
			t.Errorf("delta %d: expected accepted=%v", tt.delta, tt.accepted)
		}
	}
}

func TestClassifyDiscrepancy_NegativeDelta(t *testing.T) {
	a := ClassifyDiscrepancy(date(2025, 11, 15), []model.ReferenceDate{
		ref(date(2025, 11, 10), model.SourceTimeTag),
	})
	if a.DeltaDays == nil || *a.DeltaDays != 5 {
		t.Fatalf("Expected absolute delta 5, got %v", a.DeltaDays)
	}
}

func TestClassifyDiscrepancy_ClosestWins(t *testing.T) {
	// A recurring show page lists many dates; the claimed one is present
	refs := []model.ReferenceDate{
		ref(date(2025, 6, 1), model.SourceFreeText),
		ref(date(2025, 11, 15), model.SourceFreeText),
		ref(date(2026, 2, 1), model.SourceFreeText),
	}
	a := ClassifyDiscrepancy(date(2025, 11, 15), refs)

	if *a.DeltaDays != 0 || a.Severity != model.SeverityOK {
		t.Errorf("Expected exact match, got delta=%d severity=%s", *a.DeltaDays, a.Severity)
	}
	if a.ReferenceCount != 3 {
		t.Errorf("Expected 3 references counted, got %d", a.ReferenceCount)
	}
}

func TestClassifyDiscrepancy_TieBreaksOnRank(t *testing.T) {
	refs := []model.ReferenceDate{
		ref(date(2025, 11, 12), model.SourceFreeText),
		ref(date(2025, 11, 18), model.SourceLDJSON),
	}
	a := ClassifyDiscrepancy(date(2025, 11, 15), refs)

	if a.MatchedKind != model.SourceLDJSON {
		t.Errorf("Expected lower rank source to win tie, got %s", a.MatchedKind)
	}
}

func TestClassifyDiscrepancy_MonotonicSeverity(t *testing.T) {
	order := map[model.Severity]int{
		model.SeverityOK: 0, model.SeverityMinor: 1, model.SeverityModerate: 2,
		model.SeveritySevere: 3, model.SeverityCritical: 4,
	}
	prev := 0
	for d := 0; d <= 400; d++ {
		cur := order[SeverityFor(d)]
		if cur < prev {
			t.Fatalf("Severity decreased at delta %d", d)
		}
		prev = cur
	}
}

func TestDeltaDays_IgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2025, 11, 15, 23, 30, 0, 0, time.UTC)
	b := time.Date(2025, 11, 16, 0, 15, 0, 0, time.UTC)
	if got := DeltaDays(a, b); got != 1 {
		t.Errorf("Expected 1 day, got %d", got)
	}
}
