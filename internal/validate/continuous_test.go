package validate

import (
	"testing"

	"github.com/ppiankov/eventscout/internal/model"
)

func TestContinuousDetector_Detect(t *testing.T) {
	detector := NewContinuousDetector(nil)

	tests := []struct {
		event   model.EventRecord
		want    bool
		keyword string
		desc    string
	}{
		{model.EventRecord{Title: "Exposição Tarsila Popular"}, true, "exposição", "accented title keyword"},
		{model.EventRecord{Title: "Hamlet", Description: "Nova temporada no Teatro Riachuelo"}, true, "temporada", "keyword in description"},
		{model.EventRecord{Title: "Monet EM CARTAZ"}, true, "em cartaz", "phrase, any case"},
		{model.EventRecord{Title: "Quarteto Fantástico", IsRecurring: true}, true, "", "upstream flag"},
		{model.EventRecord{Title: "Samba na Pedra", Description: "Roda de samba"}, false, "", "one-off show"},
		{model.EventRecord{Title: "Mostra de Cinema Francês"}, false, "", "film showcases are not consolidated"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			kw, ok := detector.Detect(tt.event)
			if ok != tt.want || kw != tt.keyword {
				t.Errorf("Detect(%q) = (%q, %v), want (%q, %v)", tt.event.Title, kw, ok, tt.keyword, tt.want)
			}
		})
	}
}

func TestConsolidationKey(t *testing.T) {
	a := model.EventRecord{Title: " Exposição Monet ", VenueName: "CCBB Rio"}
	b := model.EventRecord{Title: "exposição monet", VenueName: "ccbb rio "}
	if ConsolidationKey(a) != ConsolidationKey(b) {
		t.Errorf("Expected equal keys, got %q and %q", ConsolidationKey(a), ConsolidationKey(b))
	}
	c := model.EventRecord{Title: "Exposição Monet", VenueName: "MAR"}
	if ConsolidationKey(a) == ConsolidationKey(c) {
		t.Error("Expected different venues to give different keys")
	}
}
