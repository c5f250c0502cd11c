package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDecodeEvents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `[{"title":"A","date":"15/11/2025"},{"titulo":"B","data":"16/11/2025"}]`, 2},
		{"wrapped", `{"events":[{"title":"A"}]}`, 1},
		{"empty array", `[]`, 0},
		{"leading whitespace", "\n  [{\"title\":\"A\"}]", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := DecodeEvents(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("DecodeEvents returned error: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("Expected %d events, got %d", tt.want, len(events))
			}
		})
	}
}

func TestDecodeEvents_Aliases(t *testing.T) {
	events, err := DecodeEvents(strings.NewReader(`[{"titulo":"Show","data":"15/11/2025","local":"Circo Voador","link_ingresso":"https://x.com/e/1"}]`))
	if err != nil {
		t.Fatalf("DecodeEvents returned error: %v", err)
	}
	ev := events[0]
	if ev.Title != "Show" || ev.Date != "15/11/2025" || ev.VenueName != "Circo Voador" || ev.Link() != "https://x.com/e/1" {
		t.Errorf("Aliases not decoded: %+v", ev)
	}
}

func TestDecodeEvents_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "{", `{"items":[]}`, `"text"`} {
		if _, err := DecodeEvents(strings.NewReader(input)); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestLoadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.json")
	if err := os.WriteFile(path, []byte(`[{"title":"A"}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	events, err := LoadEvents(path)
	if err != nil || len(events) != 1 {
		t.Fatalf("LoadEvents = %v, %v", events, err)
	}

	if _, err := LoadEvents(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
}
