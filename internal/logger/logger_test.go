package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "PRODUCTION", ""} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q) returned error: %v", mode, err)
		}
		if l.SugaredLogger == nil {
			t.Fatalf("New(%q) returned nil sugared logger", mode)
		}
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("run_id", "abc").Info("batch done", "accepted", 3)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["run_id"] != "abc" {
		t.Errorf("Expected run_id field, got %v", fields)
	}
	if fields["accepted"] != int64(3) {
		t.Errorf("Expected accepted=3, got %v", fields["accepted"])
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	l.Warn("discarded")
	l.Sync()
}
