package normalize

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/eventscout/internal/model"
)

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"20:00", "20:00"},
		{"9:30", "09:30"},
		{"20h00", "20:00"},
		{"9h", "09:00"},
		{"18h30", "18:30"},
		{"14h às 22h", "14:00"},
		{"20:00 - 23:00", "20:00"},
		{"19h-22h", "19:00"},
		{"de 14h a 22h", "14:00"},
		{"21H00", "21:00"},
		{"às 20h", "20:00"},
		{"Sábado a partir das 20h", "20:00"},
		{"19hs", "19:00"},
		{"8pm", "20:00"},
		{"8:30 p.m.", "20:30"},
		{"12am", "00:00"},
		{"10h until 18h", "10:00"},
		{"20:00:00", "20:00"},
		{"20horas", "20:00"},
		{"às 20", "20:00"},
		{"a partir das 19", "19:00"},
		{"21 horas", "21:00"},
		{"15/11 às 20h", "20:00"},
		{"Sessão 2: 20h", "20:00"},
		{"meia-noite", "00:00"},
		{"meio-dia", "12:00"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeTime(tt.raw)
			if err != nil {
				t.Fatalf("NormalizeTime(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeTime(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeTime_Idempotent(t *testing.T) {
	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 1, 15, 30, 59} {
			s := fmt.Sprintf("%02d:%02d", h, m)
			got, err := NormalizeTime(s)
			if err != nil {
				t.Fatalf("NormalizeTime(%q) returned error: %v", s, err)
			}
			if got != s {
				t.Errorf("NormalizeTime(%q) = %q, want identity", s, got)
			}
		}
	}
}

func TestNormalizeTime_Unparseable(t *testing.T) {
	for _, raw := range []string{
		"amanhã à noite", "", "   ", "consultar", "25h00", "20:75",
		"Sábado, 22 de novembro", "15/11", "R$ 20", "2 sessões", "às 22 de novembro",
	} {
		t.Run(raw, func(t *testing.T) {
			got, err := NormalizeTime(raw)
			if err == nil {
				t.Fatalf("Expected error for %q, got %q", raw, got)
			}
			if !errors.Is(err, model.ErrUnparseableTime) {
				t.Errorf("Expected ErrUnparseableTime, got %v", err)
			}
			if got != "" {
				t.Errorf("Expected no fabricated time, got %q", got)
			}
		})
	}
}
