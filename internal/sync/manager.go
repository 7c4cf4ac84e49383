package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/registry-mirror/internal/config"
	"github.com/stacklok/registry-mirror/internal/httpclient"
	"github.com/stacklok/registry-mirror/internal/otel"
	"github.com/stacklok/registry-mirror/internal/registry"
	"github.com/stacklok/registry-mirror/internal/sources"
	"github.com/stacklok/registry-mirror/internal/status"
	"github.com/stacklok/registry-mirror/internal/telemetry"
	"github.com/stacklok/registry-mirror/internal/writer"
)

// Stage identifies a pipeline stage
type Stage string

const (
	// StageFetch retrieves the source feeds
	StageFetch Stage = "fetch"

	// StageAugment builds the status record
	StageAugment Stage = "augment"

	// StageSerialize writes the artifact
	StageSerialize Stage = "serialize"
)

// Error is a run failure tagged with the stage that failed
type Error struct {
	Err     error
	Message string
	Stage   Stage
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Result describes a successful run
type Result struct {
	RunID       string                 `json:"runId"`
	Fetched     int                    `json:"fetched"`
	Unique      int                    `json:"unique"`
	Dropped     int                    `json:"dropped"`
	Total       int                    `json:"total"`
	Sources     []sources.SourceReport `json:"sources"`
	Duration    time.Duration          `json:"duration"`
	GeneratedAt time.Time              `json:"generatedAt"`
	OutputPath  string                 `json:"outputPath"`
	RawURL      string                 `json:"rawUrl"`
}

// FailedSources returns the number of sources that contributed nothing
func (r *Result) FailedSources() int {
	n := 0
	for _, rep := range r.Sources {
		if rep.Failed() {
			n++
		}
	}
	return n
}

// Manager runs the aggregation pipeline
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/registry-mirror/internal/sync Manager
type Manager interface {
	// Run performs one complete run with cfg
	Run(ctx context.Context, cfg *config.Config) (*Result, *Error)
}

// Option configures the default manager
type Option func(*defaultManager)

// WithFetcher uses f for every run instead of building one from the config
func WithFetcher(f sources.Fetcher) Option {
	return func(m *defaultManager) {
		m.fetcher = f
	}
}

// WithWriterFactory overrides how the artifact writer is created for an output path
func WithWriterFactory(fn func(path string) writer.Writer) Option {
	return func(m *defaultManager) {
		m.newWriter = fn
	}
}

// WithFetchMetrics records per-source fetch metrics
func WithFetchMetrics(fm *telemetry.FetchMetrics) Option {
	return func(m *defaultManager) {
		m.fetchMetrics = fm
	}
}

// WithRunMetrics records per-run metrics
func WithRunMetrics(rm *telemetry.RunMetrics) Option {
	return func(m *defaultManager) {
		m.runMetrics = rm
	}
}

// WithTracer traces runs and source requests
func WithTracer(tracer trace.Tracer) Option {
	return func(m *defaultManager) {
		m.tracer = tracer
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *defaultManager) {
		m.now = now
	}
}

// WithMemoryProbe overrides how the status record measures memory usage
func WithMemoryProbe(probe func() uint64) Option {
	return func(m *defaultManager) {
		m.memoryProbe = probe
	}
}

type defaultManager struct {
	fetcher      sources.Fetcher
	newWriter    func(path string) writer.Writer
	fetchMetrics *telemetry.FetchMetrics
	runMetrics   *telemetry.RunMetrics
	tracer       trace.Tracer
	now          func() time.Time
	memoryProbe  func() uint64
}

// NewManager creates the default Manager
func NewManager(opts ...Option) Manager {
	m := &defaultManager{
		newWriter: func(path string) writer.Writer {
			return writer.NewFileWriter(path, 0)
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run performs FETCH -> MERGE -> AUGMENT -> SERIALIZE with cfg
func (m *defaultManager) Run(ctx context.Context, cfg *config.Config) (result *Result, runErr *Error) {
	runID := uuid.NewString()
	logger := slog.With("run_id", runID)
	start := m.now()

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.Run",
		trace.WithAttributes(
			otel.AttrRunID.String(runID),
			otel.AttrSourceCount.Int(len(cfg.Sources)),
			otel.AttrOutputPath.String(cfg.Output),
		),
	)
	defer func() {
		if runErr != nil {
			otel.RecordError(span, runErr)
		}
		span.End()
		m.runMetrics.RecordRun(ctx, m.now().Sub(start), runErr == nil)
	}()

	logger.Info("Starting registry generation", "sources", len(cfg.Sources), "output", cfg.Output)

	// FETCH
	fetched := m.fetcherFor(cfg).FetchAll(ctx, cfg.Sources)
	if err := ctx.Err(); err != nil {
		logger.Error("Run cancelled after fetch", "error", err)
		return nil, &Error{
			Err:     err,
			Message: fmt.Sprintf("Run cancelled: %v", err),
			Stage:   StageFetch,
		}
	}
	failed := fetched.Failed()
	logger.Info("Fetched plugins",
		"count", len(fetched.Records),
		"sources", len(cfg.Sources),
		"failed_sources", failed,
	)
	span.SetAttributes(otel.AttrFailedSources.Int(failed))

	// MERGE
	merger := registry.NewMerger()
	for _, rec := range fetched.Records {
		merger.Add(rec)
	}
	merged := merger.Records()
	logger.Info("Deduplicated plugins", "unique", len(merged))
	if merger.Dropped() > 0 {
		logger.Debug("Dropped unidentifiable records", "count", merger.Dropped())
	}
	m.runMetrics.RecordPlugins(ctx, len(merged), merger.Dropped())

	// AUGMENT
	generatedAt := start
	rawURL := writer.RawURL(cfg.Repository, cfg.Branch, cfg.Output)
	switch {
	case rawURL != "":
	case cfg.Repository == "":
		logger.Warn("GITHUB_REPOSITORY is not set, rawUrl will be empty")
	default:
		logger.Warn("Repository is not of the form owner/repo, rawUrl will be empty",
			"repository", cfg.Repository)
	}

	loc, err := cfg.Status.GetLocation()
	if err != nil {
		return nil, m.fail(logger, StageAugment, "Invalid status time zone", err)
	}
	statusRecord, err := status.Build(status.Options{
		PluginCount: len(merged),
		GeneratedAt: generatedAt,
		RawURL:      rawURL,
		Verbose:     cfg.Status.IsVerbose(),
		Location:    loc,
		Publisher:   status.Person{Name: cfg.Status.Publisher.Name, Email: cfg.Status.Publisher.Email},
		MemoryProbe: m.memoryProbe,
	})
	if err != nil {
		return nil, m.fail(logger, StageAugment, "Failed to build status record", err)
	}

	objects := make([]registry.Record, 0, len(merged)+1)
	objects = append(objects, statusRecord)
	objects = append(objects, merged...)

	// SERIALIZE
	env := writer.NewEnvelope(cfg.Info, generatedAt, rawURL, cfg.Sources, objects)
	if err := m.newWriter(cfg.Output).Write(ctx, env); err != nil {
		return nil, m.fail(logger, StageSerialize, "Failed to write registry", err)
	}

	result = &Result{
		RunID:       runID,
		Fetched:     len(fetched.Records),
		Unique:      len(merged),
		Dropped:     merger.Dropped(),
		Total:       env.Total,
		Sources:     fetched.Reports,
		Duration:    m.now().Sub(start),
		GeneratedAt: generatedAt,
		OutputPath:  cfg.Output,
		RawURL:      rawURL,
	}
	span.SetAttributes(
		otel.AttrResultCount.Int(result.Total),
		otel.AttrDroppedCount.Int(result.Dropped),
	)

	logger.Info("Registry generated",
		"total", result.Total,
		"duration", result.Duration,
		"output", result.OutputPath,
		"raw_url", result.RawURL,
	)
	return result, nil
}

func (m *defaultManager) fetcherFor(cfg *config.Config) sources.Fetcher {
	if m.fetcher != nil {
		return m.fetcher
	}
	timeout := cfg.GetFetchTimeout()
	return sources.NewFetcher(
		httpclient.NewDefaultClient(timeout),
		sources.WithTimeout(timeout),
		sources.WithMetrics(m.fetchMetrics),
		sources.WithTracer(m.tracer),
	)
}

func (*defaultManager) fail(logger *slog.Logger, stage Stage, msg string, err error) *Error {
	logger.Error(msg, "stage", stage, "error", err)
	return &Error{
		Err:     err,
		Message: fmt.Sprintf("%s: %v", msg, err),
		Stage:   stage,
	}
}
