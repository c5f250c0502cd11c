package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/eventscout/internal/cache"
	"github.com/ppiankov/eventscout/internal/extract"
	"github.com/ppiankov/eventscout/internal/llm"
	"github.com/ppiankov/eventscout/internal/logger"
	"github.com/ppiankov/eventscout/internal/metrics"
	"github.com/ppiankov/eventscout/internal/model"
	"github.com/ppiankov/eventscout/internal/normalize"
	"github.com/ppiankov/eventscout/internal/score"
	"github.com/ppiankov/eventscout/internal/util"
	"github.com/ppiankov/eventscout/internal/validate"
	"github.com/ppiankov/eventscout/internal/worker"
)

// AdherenceJudge rates how well an event matches its search criteria (0-10)
type AdherenceJudge interface {
	JudgeAdherence(ctx context.Context, event model.EventRecord, pageText string) (float64, error)
}

// Orchestrator validates and scores batches of events
type Orchestrator struct {
	fetcher    ContentFetcher
	judge      AdherenceJudge // Optional, nil when no LLM is configured
	extractor  *extract.DateExtractor
	links      *validate.LinkClassifier
	exclusion  *validate.ExclusionFilter
	continuous *validate.ContinuousDetector
	scorer     *score.Scorer
	config     *model.Config
	log        *logger.Logger
	metrics    *metrics.Metrics
	progress   worker.ProgressFunc
	now        func() time.Time
}

// Deps are the collaborators of an Orchestrator. Everything but Fetcher
// may be nil.
type Deps struct {
	Fetcher  ContentFetcher
	Judge    AdherenceJudge
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Progress worker.ProgressFunc
}

// NewOrchestrator creates an orchestrator from explicit collaborators
func NewOrchestrator(cfg *model.Config, deps Deps) *Orchestrator {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	return &Orchestrator{
		fetcher:    deps.Fetcher,
		judge:      deps.Judge,
		extractor:  extract.NewDateExtractor(),
		links:      validate.NewLinkClassifier(&cfg.Links),
		exclusion:  validate.NewExclusionFilter(&cfg.Filter),
		continuous: validate.NewContinuousDetector(&cfg.Continuous),
		scorer:     score.NewScorer(&cfg.Scoring),
		config:     cfg,
		log:        logger.OrNop(deps.Logger),
		metrics:    deps.Metrics,
		progress:   deps.Progress,
		now:        time.Now,
	}
}

// New wires the HTTP fetcher, page cache and optional LLM judge described by
// cfg
func New(cfg *model.Config, log *logger.Logger, m *metrics.Metrics) *Orchestrator {
	log = logger.OrNop(log)
	pageCache := cache.New(&cfg.Cache)

	opts := []FetcherOption{
		WithCache(pageCache, cfg.Cache.DiskTTL),
		WithLimiter(worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)),
		WithLogger(log),
		WithMetrics(m),
	}
	if cfg.HTTP.RespectRobots {
		opts = append(opts, WithRobots(util.NewRobotsChecker(util.NewHTTPClient(&cfg.HTTP), cfg.HTTP.UserAgent)))
	}

	deps := Deps{
		Fetcher: NewFetcher(cfg.HTTP, opts...),
		Logger:  log,
		Metrics: m,
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	switch {
	case err != nil:
		log.Warn("LLM judge disabled", "provider", cfg.LLM.Provider, "error", err)
	case provider != nil:
		deps.Judge = llm.NewJudge(provider, cfg.LLM, pageCache)
		log.Info("LLM judge enabled", "provider", provider.Name())
	}

	return NewOrchestrator(cfg, deps)
}

// OnProgress registers fn to be told as each event finishes
func (o *Orchestrator) OnProgress(fn worker.ProgressFunc) {
	o.progress = fn
}

// outcome is the result of running one event through the pipeline
type outcome struct {
	validated   *model.ValidatedEvent
	rejection   *model.Rejection
	fetchFailed bool
}

// ProcessBatch validates every event and returns exactly one accepted or
// rejected entry per input
func (o *Orchestrator) ProcessBatch(ctx context.Context, events []model.EventRecord) *model.BatchResult {
	result := &model.BatchResult{
		RunID:     uuid.NewString(),
		StartedAt: o.now().UTC(),
		Accepted:  []model.ValidatedEvent{},
		Rejected:  []model.Rejection{},
	}
	log := o.log.With("run_id", result.RunID)

	if o.config.Pipeline.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Pipeline.BatchTimeout)
		defer cancel()
	}

	log.Info("processing batch", "events", len(events), "workers", o.config.Concurrency.FetchWorkers)

	var poolOpts []worker.PoolOption
	if o.progress != nil {
		poolOpts = append(poolOpts, worker.WithProgress(o.progress))
	}
	outcomes := worker.Map(ctx, o.workers(), events, func(ctx context.Context, i int, ev model.EventRecord) outcome {
		return o.processEvent(ctx, log.With("index", i), ev)
	}, poolOpts...)

	seen := make(map[string]bool)
	seasons := make(map[string]int)
	for _, out := range outcomes {
		if out.fetchFailed {
			result.Stats.FetchFailures++
		}

		// Continuous events keep their first accepted date; later ones fold in
		if v := out.validated; v != nil && v.Event.IsRecurring && o.config.Continuous.Consolidate {
			key := validate.ConsolidationKey(v.Event)
			seasons[key]++
			if seasons[key] > 1 {
				out = outcome{rejection: &model.Rejection{
					Event:  v.Event,
					Reason: model.ReasonDuplicate,
					Detail: "another date of a continuous event already accepted for this title and venue",
				}}
			}
		}

		if out.validated != nil && o.config.Pipeline.Dedupe {
			key := dedupeKey(out.validated.Event)
			if seen[key] {
				out = outcome{rejection: &model.Rejection{
					Event:  out.validated.Event,
					Reason: model.ReasonDuplicate,
					Detail: "duplicate of an earlier event with the same title, date and time",
				}}
			}
			seen[key] = true
		}

		if out.rejection != nil {
			result.Rejected = append(result.Rejected, *out.rejection)
			o.metrics.ObserveEvent(string(model.DecisionRejected), string(out.rejection.Reason))
			continue
		}
		result.Accepted = append(result.Accepted, *out.validated)
		o.metrics.ObserveEvent(string(model.DecisionAccepted), "")
		o.metrics.ObserveQuality(out.validated.Score.Overall)
	}

	result.FinishedAt = o.now().UTC()
	result.Stats = computeStats(result)
	o.metrics.ObserveBatch(result.FinishedAt.Sub(result.StartedAt), result.FinishedAt)

	log.Info("batch complete",
		"accepted", result.Stats.Accepted,
		"rejected", result.Stats.Rejected,
		"fetch_failures", result.Stats.FetchFailures,
		"mean_overall", result.Stats.MeanOverall)
	return result
}

func (o *Orchestrator) workers() int {
	if o.config.Concurrency.FetchWorkers > 0 {
		return o.config.Concurrency.FetchWorkers
	}
	return 1
}

// processEvent runs the sequential per-event stages
func (o *Orchestrator) processEvent(ctx context.Context, log *logger.Logger, ev model.EventRecord) outcome {
	normalized := normalizeFields(ev)
	reject := func(reason model.RejectionReason, detail string) outcome {
		log.Debug("event rejected", "title", normalized.Title, "reason", reason, "detail", detail)
		return outcome{rejection: &model.Rejection{Event: normalized, Reason: reason, Detail: detail}}
	}

	// Time: unparseable is treated as missing, never a rejection
	timeValid := false
	if normalized.Time != "" {
		if t, err := normalize.NormalizeTime(normalized.Time); err == nil {
			normalized.Time = t
			timeValid = true
		} else {
			log.Debug("time not normalized", "time", normalized.Time, "error", err)
		}
	}

	eventDate, err := normalize.NormalizeDate(normalized.Date)
	if err != nil {
		return reject(model.ReasonInvalidDate, err.Error())
	}
	normalized.Date = normalize.FormatDate(eventDate)

	if missing := normalized.MissingRequired(); len(missing) > 0 {
		detail := fmt.Errorf("%w: missing %s", model.ErrIncompleteRecord, strings.Join(missing, ", "))
		return reject(model.ReasonIncompleteRecord, detail.Error())
	}

	if kw, ok := o.exclusion.Match(normalized); ok {
		normalized.Excluded = true
		log.Debug("event flagged as excluded", "title", normalized.Title, "keyword", kw)
	}

	if kw, ok := o.continuous.Detect(normalized); ok && !normalized.IsRecurring {
		normalized.IsRecurring = true
		log.Debug("event flagged as continuous", "title", normalized.Title, "keyword", kw)
	}

	link := normalized.Link()
	if link != "" {
		normalized.TicketLink = &link
	}
	kind := o.links.Classify(link)

	var content string
	fetchFailed := false
	if link != "" && o.fetcher != nil {
		content, err = o.fetcher.FetchContent(ctx, link)
		if err != nil {
			fetchFailed = true
			content = ""
			if errors.Is(err, model.ErrFetchTimeout) {
				log.Warn("reference fetch timed out", "url", link, "error", err)
			} else {
				log.Debug("reference fetch failed", "url", link, "error", err)
			}
		}
	}

	assessment := validate.ClassifyDiscrepancy(eventDate, o.extractor.All(content))
	o.metrics.ObserveSeverity(string(assessment.Severity))
	if !assessment.Accepted {
		detail := fmt.Errorf("%w: %s differs from linked page by %d days (%s)",
			model.ErrDateMismatch, normalized.Date, *assessment.DeltaDays, assessment.Severity)
		out := reject(model.ReasonDateMismatch, detail.Error())
		out.fetchFailed = fetchFailed
		return out
	}

	pageText := ""
	if content != "" {
		pageText = extract.VisibleText(content)
	}

	q := o.scorer.Calculate(score.Input{
		Event:       normalized,
		DateValid:   true,
		TimeValid:   timeValid,
		Assessment:  assessment,
		LinkKind:    kind,
		PageText:    pageText,
		FetchFailed: fetchFailed,
		Adherence:   o.adherence(ctx, log, normalized, pageText),
	})

	return outcome{
		validated: &model.ValidatedEvent{
			Event:       normalized,
			Assessment:  assessment,
			Score:       q,
			Decision:    model.DecisionAccepted,
			LinkKind:    kind,
			ProcessedAt: o.now().UTC(),
		},
		fetchFailed: fetchFailed,
	}
}

// adherence asks the judge, falling back to the upstream value; nil lets
// the scorer apply its default
func (o *Orchestrator) adherence(ctx context.Context, log *logger.Logger, ev model.EventRecord, pageText string) *float64 {
	if o.judge != nil {
		v, err := o.judge.JudgeAdherence(ctx, ev, pageText)
		if err == nil {
			return &v
		}
		log.Warn("adherence judge failed, using fallback", "title", ev.Title, "error", err)
	}
	return ev.Adherence
}

// normalizeFields returns a trimmed copy of ev
func normalizeFields(ev model.EventRecord) model.EventRecord {
	out := ev
	out.Title = strings.TrimSpace(ev.Title)
	out.Date = strings.TrimSpace(ev.Date)
	out.Time = strings.TrimSpace(ev.Time)
	out.VenueName = strings.TrimSpace(ev.VenueName)
	out.Address = strings.TrimSpace(ev.Address)
	out.Price = strings.TrimSpace(ev.Price)
	out.Description = strings.TrimSpace(ev.Description)
	out.Category = strings.TrimSpace(ev.Category)
	if ev.TicketLink != nil {
		link := strings.TrimSpace(*ev.TicketLink)
		out.TicketLink = &link
	}
	if ev.Adherence != nil {
		a := *ev.Adherence
		out.Adherence = &a
	}
	return out
}

func dedupeKey(ev model.EventRecord) string {
	return strings.ToLower(ev.Title) + "|" + ev.Date + "|" + ev.Time
}

// computeStats aggregates decisions, severities and quality bands
func computeStats(r *model.BatchResult) model.BatchStats {
	stats := model.BatchStats{
		Total:         r.Total(),
		Accepted:      len(r.Accepted),
		Rejected:      len(r.Rejected),
		ByReason:      make(map[model.RejectionReason]int),
		BySeverity:    make(map[model.Severity]int),
		FetchFailures: r.Stats.FetchFailures,
	}

	for _, rej := range r.Rejected {
		stats.ByReason[rej.Reason]++
	}

	var sum float64
	for _, v := range r.Accepted {
		stats.BySeverity[v.Assessment.Severity]++
		sum += v.Score.Overall
		switch score.Band(v.Score.Overall) {
		case "high":
			stats.HighQuality++
		case "medium":
			stats.MediumQuality++
		default:
			stats.LowQuality++
		}
	}
	if len(r.Accepted) > 0 {
		stats.MeanOverall = math.Round(sum/float64(len(r.Accepted))*100) / 100
	}
	return stats
}
