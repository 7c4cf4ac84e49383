package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/registry-mirror/internal/httpclient"
	"github.com/stacklok/registry-mirror/internal/otel"
	"github.com/stacklok/registry-mirror/internal/registry"
	"github.com/stacklok/registry-mirror/internal/telemetry"
)

// DefaultTimeout bounds each source request
const DefaultTimeout = 15 * time.Second

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetcher.go Fetcher

// Fetcher retrieves records from a list of sources
type Fetcher interface {
	// FetchAll fetches every source concurrently. Failures are absorbed into
	// the per-source reports.
	FetchAll(ctx context.Context, urls []string) *FetchResult
}

// SourceReport describes the outcome of fetching one source
type SourceReport struct {
	URL      string        `json:"url"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Failed reports whether the source contributed nothing because of an error
func (r SourceReport) Failed() bool {
	return r.Err != nil
}

// FetchResult contains the records of all sources, in source order
type FetchResult struct {
	Records []registry.Record
	Reports []SourceReport
}

// Failed returns the number of sources that failed
func (r *FetchResult) Failed() int {
	n := 0
	for _, rep := range r.Reports {
		if rep.Failed() {
			n++
		}
	}
	return n
}

// Option configures the default fetcher
type Option func(*defaultFetcher)

// WithTimeout sets the per-source timeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(f *defaultFetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithMetrics records per-source fetch metrics
func WithMetrics(m *telemetry.FetchMetrics) Option {
	return func(f *defaultFetcher) {
		f.metrics = m
	}
}

// WithTracer creates a span per source request
func WithTracer(tracer trace.Tracer) Option {
	return func(f *defaultFetcher) {
		f.tracer = tracer
	}
}

type defaultFetcher struct {
	client  httpclient.Client
	timeout time.Duration
	metrics *telemetry.FetchMetrics
	tracer  trace.Tracer
}

// NewFetcher creates a Fetcher that uses client for http(s) sources
func NewFetcher(client httpclient.Client, opts ...Option) Fetcher {
	f := &defaultFetcher{
		client:  client,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *defaultFetcher) FetchAll(ctx context.Context, urls []string) *FetchResult {
	slots := make([][]registry.Record, len(urls))
	reports := make([]SourceReport, len(urls))

	var g errgroup.Group
	for i, source := range urls {
		g.Go(func() error {
			start := time.Now()
			records, err := f.fetchOne(ctx, source)
			duration := time.Since(start)

			slots[i] = records
			reports[i] = SourceReport{URL: source, Count: len(records), Duration: duration, Err: err}
			f.metrics.RecordFetch(ctx, source, duration, len(records), err == nil)

			if err != nil {
				slog.Warn("Failed to fetch source", "source", source, "error", err)
				return nil
			}
			slog.Info("Fetched source", "source", source, "count", len(records), "duration", duration)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, s := range slots {
		total += len(s)
	}
	records := make([]registry.Record, 0, total)
	for _, s := range slots {
		records = append(records, s...)
	}

	return &FetchResult{Records: records, Reports: reports}
}

func (f *defaultFetcher) fetchOne(ctx context.Context, source string) ([]registry.Record, error) {
	ctx, span := otel.StartSpan(ctx, f.tracer, "sources.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(otel.AttrSourceURL.String(source)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	data, err := f.read(ctx, source)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	records, err := ParseFeed(data)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	return records, nil
}

func (f *defaultFetcher) read(ctx context.Context, source string) ([]byte, error) {
	path, isFile := localPath(source)
	if !isFile {
		return f.client.Get(ctx, source)
	}

	//nolint:gosec // source paths come from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// localPath reports whether source names a local file and returns its path
func localPath(source string) (string, bool) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return "", false
	}
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return strings.TrimPrefix(source, "file://"), true
		}
		return u.Path, true
	}
	return source, true
}
