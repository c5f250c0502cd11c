package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/eventscout/internal/logger"
	"github.com/ppiankov/eventscout/internal/metrics"
	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/normalize"
	"github.com/ppiankov/eventscout/internal/pipeline"
)

// BatchRunner validates a batch of events
type BatchRunner interface {
	ProcessBatch(ctx context.Context, events []model.EventRecord) *model.BatchResult
}

// JobState tracks the refresh job. Only one run may be active at a time.
type JobState struct {
	IsRunning      bool       `json:"is_running"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	LastRunID      string     `json:"last_run_id,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// Options configure a Server
type Options struct {
	Runner     BatchRunner
	InputPath  string // Events re-validated on refresh
	OutputPath string // Where results are persisted and loaded from
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

// Server exposes validated events read-only and triggers refresh runs
type Server struct {
	runner     BatchRunner
	inputPath  string
	outputPath string
	renderer   *pipeline.Renderer
	metrics    *metrics.Metrics
	log        *logger.Logger

	mu     sync.RWMutex
	result *model.BatchResult
	job    JobState
	runs   sync.WaitGroup

	// runCtx bounds refresh runs; cancelled on shutdown
	runCtx     context.Context
	cancelRuns context.CancelFunc
}

// New creates a server, loading the last persisted result if there is one
func New(opts Options) *Server {
	s := &Server{
		runner:     opts.Runner,
		inputPath:  opts.InputPath,
		outputPath: opts.OutputPath,
		renderer:   pipeline.NewRenderer(nil),
		metrics:    opts.Metrics,
		log:        logger.OrNop(opts.Logger),
	}
	s.runCtx, s.cancelRuns = context.WithCancel(context.Background())

	if s.outputPath != "" {
		result, err := pipeline.LoadResult(s.outputPath)
		switch {
		case err == nil:
			s.result = result
			s.log.Info("loaded results", "path", s.outputPath, "run_id", result.RunID, "events", result.Total())
		case !errors.Is(err, fs.ErrNotExist):
			s.log.Warn("could not load results", "path", s.outputPath, "error", err)
		}
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.health)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/refresh/status", s.handleRefreshStatus)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

// allowMethod answers 405 unless r uses method
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	result := s.current()
	if result == nil {
		writeError(w, http.StatusNotFound, "no results yet")
		return
	}

	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))

	date := strings.TrimSpace(q.Get("date"))
	if date != "" {
		d, err := normalize.NormalizeDate(date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be DD/MM/YYYY")
			return
		}
		date = normalize.FormatDate(d)
	}

	matches := func(ev model.EventRecord) bool {
		if category != "" && !strings.EqualFold(ev.Category, category) {
			return false
		}
		return date == "" || ev.Date == date
	}

	var candidates []model.ValidatedEvent
	switch decision := strings.ToLower(q.Get("decision")); decision {
	case "", string(model.DecisionAccepted):
		candidates = result.Accepted
	case string(model.DecisionRejected):
		for _, rej := range result.Rejected {
			candidates = append(candidates, rej.Validated())
		}
	case "all":
		candidates = result.Events()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown decision %q", decision))
		return
	}

	events := []model.ValidatedEvent{}
	for _, v := range candidates {
		if matches(v.Event) {
			events = append(events, v)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id": result.RunID,
		"count":  len(events),
		"events": events,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	result := s.current()
	if result == nil {
		writeError(w, http.StatusNotFound, "no results yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":      result.RunID,
		"finished_at": result.FinishedAt,
		"stats":       result.Stats,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.runner == nil || s.inputPath == "" {
		writeError(w, http.StatusServiceUnavailable, "refresh disabled")
		return
	}

	if !s.startRun() {
		writeError(w, http.StatusConflict, "refresh already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	s.mu.RLock()
	job := s.job
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, job)
}

// startRun flips the job to running and launches it; false if one is active
func (s *Server) startRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job.IsRunning {
		return false
	}

	now := time.Now().UTC()
	s.job.IsRunning = true
	s.job.LastStartedAt = &now
	s.job.LastError = ""

	s.runs.Add(1)
	go s.run()
	return true
}

func (s *Server) run() {
	defer s.runs.Done()

	result, err := s.refresh(s.runCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	finished := time.Now().UTC()
	s.job.IsRunning = false
	s.job.LastFinishedAt = &finished
	if err != nil {
		s.job.LastError = err.Error()
		s.log.Error("refresh failed", "error", err)
		return
	}
	s.job.LastRunID = result.RunID
	s.result = result
}

func (s *Server) refresh(ctx context.Context) (*model.BatchResult, error) {
	events, err := pipeline.LoadEvents(s.inputPath)
	if err != nil {
		return nil, err
	}

	s.log.Info("refresh started", "input", s.inputPath, "events", len(events))
	result := s.runner.ProcessBatch(ctx, events)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh cancelled: %w", err)
	}

	if s.outputPath != "" {
		if err := s.renderer.RenderJSON(result, s.outputPath); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Server) current() *model.BatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// wait blocks until every started run has finished
func (s *Server) wait() {
	s.runs.Wait()
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// An in-flight refresh is cancelled and waited for.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.cancelRuns()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	s.wait()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
