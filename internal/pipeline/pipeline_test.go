package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/eventscout/internal/model"
)

// fakeFetcher serves canned pages keyed by URL
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
	block map[string]bool // Wait for ctx cancellation
	calls atomic.Int32
}

func (f *fakeFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	f.calls.Add(1)
	if f.block[url] {
		<-ctx.Done()
		return "", fmt.Errorf("%w: %v", model.ErrFetchTimeout, ctx.Err())
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return "", fmt.Errorf("%w: not found", model.ErrFetchFailure)
}

type fakeJudge struct {
	score float64
	err   error
}

func (j *fakeJudge) JudgeAdherence(ctx context.Context, event model.EventRecord, pageText string) (float64, error) {
	return j.score, j.err
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func testEvent(title, date, link string) model.EventRecord {
	ev := model.EventRecord{
		Title:       title,
		Date:        date,
		Time:        "20h",
		VenueName:   "Blue Note Rio",
		Price:       "R$ 50",
		Description: "Noite de jazz com repertório autoral e convidados.",
		Category:    "show",
	}
	if link != "" {
		ev.TicketLink = strPtr(link)
	}
	return ev
}

func page(title, datetime string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><time datetime="%s">data</time><p>Ingressos R$ 50</p></body></html>`, title, datetime)
}

func newTestOrchestrator(fetcher ContentFetcher, judge AdherenceJudge, mutate func(*model.Config)) *Orchestrator {
	cfg := model.DefaultConfig()
	cfg.Concurrency.FetchWorkers = 3
	if mutate != nil {
		mutate(cfg)
	}
	o := NewOrchestrator(cfg, Deps{Fetcher: fetcher, Judge: judge})
	o.now = func() time.Time { return time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC) }
	return o
}

func TestProcessBatch_Isolation(t *testing.T) {
	const (
		url1 = "https://example.com/evento/quarteto-fantastico-12345"
		url2 = "https://slow.example.com/evento/trio-lento-999"
		url3 = "https://example.com/evento/coral-da-lapa-777"
	)
	fetcher := &fakeFetcher{
		pages: map[string]string{
			url1: page("Quarteto Fantástico", "2025-11-15T20:00"),
			url3: page("Coral da Lapa", "2025-11-20T19:00"),
		},
		errs: map[string]error{
			url2: fmt.Errorf("%w: deadline exceeded", model.ErrFetchTimeout),
		},
	}

	events := []model.EventRecord{
		testEvent("Quarteto Fantástico", "15/11/2025", url1),
		testEvent("Trio Lento", "18/11/2025", url2),
		testEvent("Coral da Lapa", "20/11/2025", url3),
	}

	result := newTestOrchestrator(fetcher, nil, nil).ProcessBatch(context.Background(), events)

	if result.Total() != 3 {
		t.Fatalf("Expected 3 results, got %d", result.Total())
	}
	if len(result.Accepted) != 3 {
		t.Fatalf("Expected all 3 accepted, got %d (rejected: %+v)", len(result.Accepted), result.Rejected)
	}
	if result.Stats.FetchFailures != 1 {
		t.Errorf("Expected 1 fetch failure, got %d", result.Stats.FetchFailures)
	}
	if result.RunID == "" {
		t.Error("Expected a run ID")
	}

	byTitle := map[string]model.ValidatedEvent{}
	for _, v := range result.Accepted {
		byTitle[v.Event.Title] = v
	}

	slow := byTitle["Trio Lento"]
	if slow.Assessment.DeltaDays != nil || slow.Assessment.Severity != model.SeverityOK {
		t.Errorf("Expected no-reference assessment for timed-out fetch, got %+v", slow.Assessment)
	}
	if slow.Score.LinkContentCorrelation > 5 {
		t.Errorf("Expected link correlation capped at 5 on fetch failure, got %v", slow.Score.LinkContentCorrelation)
	}
	if slow.Score.DateTimePrecision != 8 {
		t.Errorf("Expected unverified precision 8, got %v", slow.Score.DateTimePrecision)
	}

	first := byTitle["Quarteto Fantástico"]
	if first.Assessment.DeltaDays == nil || *first.Assessment.DeltaDays != 0 {
		t.Errorf("Expected exact date match, got %+v", first.Assessment)
	}
	// 0.3*7 (default adherence) + 0.3*10 + 0.3*10 + 0.1*10
	if first.Score.Overall != 9.1 {
		t.Errorf("Expected overall 9.1, got %v (%+v)", first.Score.Overall, first.Score)
	}
	if first.Event.Time != "20:00" || first.Event.Date != "15/11/2025" {
		t.Errorf("Expected normalized date/time, got %q %q", first.Event.Date, first.Event.Time)
	}
	if first.LinkKind != model.LinkSpecific {
		t.Errorf("Expected specific link, got %s", first.LinkKind)
	}
}

func TestProcessBatch_Gates(t *testing.T) {
	const mismatchURL = "https://example.com/evento/festival-antigo-1"
	const moderateURL = "https://example.com/evento/festival-proximo-2"
	fetcher := &fakeFetcher{pages: map[string]string{
		mismatchURL: page("Festival Antigo", "2026-01-14"),
		moderateURL: page("Festival Próximo", "2025-12-05"),
	}}

	invalidDate := testEvent("Sem Data", "amanhã", "")
	incomplete := testEvent("Sem Local", "15/11/2025", "")
	incomplete.VenueName = ""
	bothBroken := testEvent("Tudo Errado", "sem data", "")
	bothBroken.VenueName = ""
	badTime := testEvent("Horário Livre", "15/11/2025", "")
	badTime.Time = "consultar"

	events := []model.EventRecord{
		invalidDate,
		incomplete,
		bothBroken,
		testEvent("Festival Antigo", "15/11/2025", mismatchURL),
		testEvent("Festival Próximo", "15/11/2025", moderateURL),
		badTime,
	}

	result := newTestOrchestrator(fetcher, nil, nil).ProcessBatch(context.Background(), events)
	if result.Total() != len(events) {
		t.Fatalf("Expected %d results, got %d", len(events), result.Total())
	}

	reasons := map[string]model.RejectionReason{}
	for _, r := range result.Rejected {
		reasons[r.Event.Title] = r.Reason
	}

	tests := []struct {
		title string
		want  model.RejectionReason
	}{
		{"Sem Data", model.ReasonInvalidDate},
		{"Sem Local", model.ReasonIncompleteRecord},
		{"Tudo Errado", model.ReasonInvalidDate},
		{"Festival Antigo", model.ReasonDateMismatch},
	}
	for _, tt := range tests {
		if got := reasons[tt.title]; got != tt.want {
			t.Errorf("%s: expected %s, got %q", tt.title, tt.want, got)
		}
	}

	if result.Stats.ByReason[model.ReasonInvalidDate] != 2 {
		t.Errorf("Expected 2 InvalidDate, got %d", result.Stats.ByReason[model.ReasonInvalidDate])
	}

	accepted := map[string]model.ValidatedEvent{}
	for _, v := range result.Accepted {
		accepted[v.Event.Title] = v
	}

	moderate, ok := accepted["Festival Próximo"]
	if !ok {
		t.Fatal("Expected moderate discrepancy to be accepted")
	}
	if moderate.Assessment.Severity != model.SeverityModerate {
		t.Errorf("Expected moderate severity, got %s", moderate.Assessment.Severity)
	}
	if len(moderate.Score.Warnings) == 0 {
		t.Error("Expected a warning for moderate discrepancy")
	}

	free, ok := accepted["Horário Livre"]
	if !ok {
		t.Fatal("Unparseable time must not reject the event")
	}
	if free.Score.Completeness >= 10 {
		t.Errorf("Expected completeness penalty for unparseable time, got %v", free.Score.Completeness)
	}
	if free.Event.Time != "consultar" {
		t.Errorf("Expected raw time kept, got %q", free.Event.Time)
	}
}

func TestProcessBatch_Duplicates(t *testing.T) {
	events := []model.EventRecord{
		testEvent("Samba na Pedra", "16/11/2025", ""),
		testEvent("samba na pedra", "16/11/2025", ""),
		testEvent("Samba na Pedra", "23/11/2025", ""),
	}

	t.Run("disabled", func(t *testing.T) {
		result := newTestOrchestrator(&fakeFetcher{}, nil, nil).ProcessBatch(context.Background(), events)
		if len(result.Accepted) != 3 {
			t.Errorf("Expected 3 accepted without dedupe, got %d", len(result.Accepted))
		}
	})

	t.Run("enabled", func(t *testing.T) {
		o := newTestOrchestrator(&fakeFetcher{}, nil, func(c *model.Config) { c.Pipeline.Dedupe = true })
		result := o.ProcessBatch(context.Background(), events)
		if len(result.Accepted) != 2 || len(result.Rejected) != 1 {
			t.Fatalf("Expected 2 accepted and 1 duplicate, got %d/%d", len(result.Accepted), len(result.Rejected))
		}
		if result.Rejected[0].Reason != model.ReasonDuplicate {
			t.Errorf("Expected Duplicate, got %s", result.Rejected[0].Reason)
		}
		if result.Accepted[0].Event.Title != "Samba na Pedra" {
			t.Errorf("Expected first occurrence kept, got %q", result.Accepted[0].Event.Title)
		}
	})
}

func TestProcessBatch_ConsolidatesContinuousEvents(t *testing.T) {
	exhibit := func(date string) model.EventRecord {
		ev := testEvent("Exposição Tarsila Popular", date, "")
		ev.VenueName = "MAR"
		return ev
	}
	season := testEvent("Hamlet", "16/11/2025", "")
	season.IsRecurring = true
	seasonAgain := season
	seasonAgain.Date = "17/11/2025"

	events := []model.EventRecord{
		exhibit("15/11/2025"),
		exhibit("16/11/2025"),
		testEvent("Samba na Pedra", "16/11/2025", ""),
		exhibit("22/11/2025"),
		season,
		seasonAgain,
	}

	t.Run("enabled", func(t *testing.T) {
		result := newTestOrchestrator(&fakeFetcher{}, nil, nil).ProcessBatch(context.Background(), events)
		if result.Total() != len(events) {
			t.Fatalf("Expected %d results, got %d", len(events), result.Total())
		}
		if len(result.Accepted) != 3 || len(result.Rejected) != 3 {
			t.Fatalf("Expected 3 accepted and 3 folded, got %d/%d", len(result.Accepted), len(result.Rejected))
		}
		if a := result.Accepted[0]; a.Event.Date != "15/11/2025" || !a.Event.IsRecurring {
			t.Errorf("Expected first exhibition date kept and flagged, got %+v", a.Event)
		}
		for _, rej := range result.Rejected {
			if rej.Reason != model.ReasonDuplicate {
				t.Errorf("Expected Duplicate for folded date, got %s", rej.Reason)
			}
		}
	})

	t.Run("disabled", func(t *testing.T) {
		o := newTestOrchestrator(&fakeFetcher{}, nil, func(c *model.Config) { c.Continuous.Consolidate = false })
		result := o.ProcessBatch(context.Background(), events)
		if len(result.Accepted) != len(events) {
			t.Errorf("Expected every date accepted, got %d", len(result.Accepted))
		}
	})
}

func TestProcessBatch_SchemelessLink(t *testing.T) {
	const canonical = "https://www.sympla.com.br/evento/quarteto-fantastico-12345"
	fetcher := &fakeFetcher{pages: map[string]string{canonical: page("Quarteto Fantástico", "2025-11-15T20:00")}}

	ev := testEvent("Quarteto Fantástico", "15/11/2025", "www.sympla.com.br/evento/quarteto-fantastico-12345")
	result := newTestOrchestrator(fetcher, nil, nil).ProcessBatch(context.Background(), []model.EventRecord{ev})
	if len(result.Accepted) != 1 {
		t.Fatalf("Expected event accepted, got %+v", result.Rejected)
	}

	v := result.Accepted[0]
	if v.LinkKind != model.LinkSpecific {
		t.Errorf("Expected specific link, got %s", v.LinkKind)
	}
	if v.Event.Link() != canonical {
		t.Errorf("Expected normalized link %q, got %q", canonical, v.Event.Link())
	}
	if result.Stats.FetchFailures != 0 || v.Assessment.DeltaDays == nil {
		t.Errorf("Expected the page to be fetched and compared, got %+v", v.Assessment)
	}
}

func TestProcessBatch_Adherence(t *testing.T) {
	upstream := testEvent("Show Upstream", "15/11/2025", "")
	upstream.Adherence = floatPtr(9)

	tests := []struct {
		name  string
		judge AdherenceJudge
		event model.EventRecord
		want  float64
	}{
		{"judge", &fakeJudge{score: 3}, upstream, 3},
		{"judge error falls back to upstream", &fakeJudge{err: errors.New("rate limited")}, upstream, 9},
		{"no judge uses upstream", nil, upstream, 9},
		{"no judge no upstream uses default", nil, testEvent("Show", "15/11/2025", ""), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newTestOrchestrator(&fakeFetcher{}, tt.judge, nil).ProcessBatch(context.Background(), []model.EventRecord{tt.event})
			if len(result.Accepted) != 1 {
				t.Fatalf("Expected event accepted, got %+v", result.Rejected)
			}
			if got := result.Accepted[0].Score.PromptAdherence; got != tt.want {
				t.Errorf("PromptAdherence = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessBatch_ExclusionKeyword(t *testing.T) {
	ev := testEvent("Teatro Infantil no Parque", "15/11/2025", "")
	result := newTestOrchestrator(&fakeFetcher{}, &fakeJudge{score: 9}, nil).ProcessBatch(context.Background(), []model.EventRecord{ev})

	if len(result.Accepted) != 1 {
		t.Fatalf("Excluded events are flagged, not rejected; got %+v", result.Rejected)
	}
	v := result.Accepted[0]
	if !v.Event.Excluded {
		t.Error("Expected event flagged as excluded")
	}
	if v.Score.PromptAdherence > 4 {
		t.Errorf("Expected adherence capped at 4 for excluded event, got %v", v.Score.PromptAdherence)
	}
}

func TestProcessBatch_BatchTimeout(t *testing.T) {
	const slowURL = "https://slow.example.com/evento/nunca-responde-1"
	fetcher := &fakeFetcher{block: map[string]bool{slowURL: true}}

	events := []model.EventRecord{
		testEvent("Lento Um", "15/11/2025", slowURL),
		testEvent("Lento Dois", "16/11/2025", slowURL),
		testEvent("Sem Link", "17/11/2025", ""),
	}

	o := newTestOrchestrator(fetcher, nil, func(c *model.Config) { c.Pipeline.BatchTimeout = 50 * time.Millisecond })

	done := make(chan *model.BatchResult, 1)
	go func() { done <- o.ProcessBatch(context.Background(), events) }()

	select {
	case result := <-done:
		if result.Total() != 3 || len(result.Accepted) != 3 {
			t.Errorf("Expected 3 accepted on the no-reference path, got %d accepted of %d", len(result.Accepted), result.Total())
		}
		if result.Stats.FetchFailures != 2 {
			t.Errorf("Expected 2 fetch failures, got %d", result.Stats.FetchFailures)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Batch did not finish after its deadline")
	}
}

func TestProcessBatch_Empty(t *testing.T) {
	result := newTestOrchestrator(&fakeFetcher{}, nil, nil).ProcessBatch(context.Background(), nil)
	if result.Total() != 0 || result.Stats.Total != 0 {
		t.Errorf("Expected empty result, got %+v", result.Stats)
	}
	if result.Accepted == nil || result.Rejected == nil {
		t.Error("Expected non-nil slices for JSON output")
	}
}

func TestProcessBatch_Stats(t *testing.T) {
	events := []model.EventRecord{
		testEvent("Um", "15/11/2025", ""),
		testEvent("Dois", "16/11/2025", ""),
		testEvent("Três", "xx", ""),
	}
	result := newTestOrchestrator(&fakeFetcher{}, nil, nil).ProcessBatch(context.Background(), events)

	s := result.Stats
	if s.Total != 3 || s.Accepted != 2 || s.Rejected != 1 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if s.BySeverity[model.SeverityOK] != 2 {
		t.Errorf("Expected 2 ok severities, got %v", s.BySeverity)
	}
	if s.HighQuality+s.MediumQuality+s.LowQuality != s.Accepted {
		t.Errorf("Quality bands do not add up: %+v", s)
	}
	if s.MeanOverall <= 0 || s.MeanOverall > 10 {
		t.Errorf("Unexpected mean overall %v", s.MeanOverall)
	}
}

func TestNormalizeFields_DoesNotMutateInput(t *testing.T) {
	ev := testEvent("  Título  ", "15/11/2025", "  https://example.com/x  ")
	out := normalizeFields(ev)

	if out.Title != "Título" || out.Link() != "https://example.com/x" {
		t.Errorf("Unexpected normalized fields: %+v", out)
	}
	if ev.Title != "  Título  " || !strings.HasPrefix(*ev.TicketLink, "  ") {
		t.Error("Input record was mutated")
	}
}

func TestProcessBatch_ReportsProgress(t *testing.T) {
	o := newTestOrchestrator(&fakeFetcher{}, nil, nil)

	var calls atomic.Int32
	var maxDone atomic.Int32
	o.OnProgress(func(done, total int) {
		calls.Add(1)
		if total != 4 {
			t.Errorf("Expected total 4, got %d", total)
		}
		for {
			cur := maxDone.Load()
			if int32(done) <= cur || maxDone.CompareAndSwap(cur, int32(done)) {
				break
			}
		}
	})

	events := []model.EventRecord{
		testEvent("Um", "15/11/2025", ""),
		testEvent("Dois", "16/11/2025", ""),
		testEvent("Três", "data ruim", ""),
		testEvent("Quatro", "17/11/2025", ""),
	}
	o.ProcessBatch(context.Background(), events)

	if calls.Load() != 4 || maxDone.Load() != 4 {
		t.Errorf("Expected 4 progress calls ending at 4, got %d calls, max %d", calls.Load(), maxDone.Load())
	}
}
