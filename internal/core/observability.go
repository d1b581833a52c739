package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome classifies how a dispatch ended.
type Outcome string

const (
	// OutcomeCommitted means the primary write and all link updates landed.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRejected means the request failed before a transaction began.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAborted means an open transaction was rolled back.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed covers storage failures outside an abort, such as a
	// transaction that could not begin.
	OutcomeFailed Outcome = "failed"
)

// Dispatch summarizes one finished create or delete.
type Dispatch struct {
	Operation   string
	Type        string
	Outcome     Outcome
	Stage       Stage
	Records     int
	LinkUpdates int
	Duration    time.Duration
	Err         error
}

// MetricsRecorder receives a summary of every dispatch.
type MetricsRecorder interface {
	RecordDispatch(ctx context.Context, d Dispatch)
}

// Tracer opens a span when a dispatch starts.
type Tracer interface {
	Start(ctx context.Context, operation, recordType string) (context.Context, TraceSpan)
}

// TraceSpan is closed exactly once with the dispatch summary.
type TraceSpan interface {
	End(d Dispatch)
}

type noopMetrics struct{}

func (noopMetrics) RecordDispatch(context.Context, Dispatch) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(Dispatch) {}

// PrometheusMetricsRecorder exports dispatch counts, latency and link
// update volume.
type PrometheusMetricsRecorder struct {
	dispatches  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	linkUpdates *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg. With a nil
// reg the collectors stay unregistered.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkcore",
			Name:      "dispatches_total",
			Help:      "Finished dispatches by operation, record type and outcome.",
		}, []string{"operation", "type", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "linkcore",
			Name:      "dispatch_seconds",
			Help:      "Dispatch latency by operation and outcome.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation", "outcome"}),
		linkUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkcore",
			Name:      "link_updates_total",
			Help:      "Inverse-link patches written by committed dispatches.",
		}, []string{"operation"}),
	}
	if reg == nil {
		return r, nil
	}
	for _, c := range []prometheus.Collector{r.dispatches, r.latency, r.linkUpdates} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RecordDispatch implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) RecordDispatch(_ context.Context, d Dispatch) {
	r.dispatches.WithLabelValues(d.Operation, d.Type, string(d.Outcome)).Inc()
	r.latency.WithLabelValues(d.Operation, string(d.Outcome)).Observe(d.Duration.Seconds())
	if d.Outcome == OutcomeCommitted {
		r.linkUpdates.WithLabelValues(d.Operation).Add(float64(d.LinkUpdates))
	}
}

// Dispatches returns the dispatch counter.
func (r *PrometheusMetricsRecorder) Dispatches() *prometheus.CounterVec { return r.dispatches }

// LinkUpdates returns the link update counter.
func (r *PrometheusMetricsRecorder) LinkUpdates() *prometheus.CounterVec { return r.linkUpdates }

// TraceRecord is one JSON line written by JSONTracer.
type TraceRecord struct {
	Operation   string    `json:"operation"`
	Type        string    `json:"type"`
	Outcome     Outcome   `json:"outcome"`
	Stage       string    `json:"stage"`
	Records     int       `json:"records"`
	LinkUpdates int       `json:"link_updates"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMS  float64   `json:"duration_ms"`
}

// JSONTracer writes one JSON line per finished dispatch and keeps the
// records in memory.
type JSONTracer struct {
	mu      sync.Mutex
	w       io.Writer
	records []TraceRecord
}

// NewJSONTracer writes to w; a nil w only keeps records in memory.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return &JSONTracer{w: w}
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, _, _ string) (context.Context, TraceSpan) {
	return ctx, &jsonSpan{tracer: t, started: time.Now().UTC()}
}

// Records returns the finished spans in completion order.
func (t *JSONTracer) Records() []TraceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceRecord(nil), t.records...)
}

func (t *JSONTracer) add(rec TraceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
	if t.w == nil {
		return
	}
	if line, err := json.Marshal(rec); err == nil {
		_, _ = t.w.Write(append(line, '\n'))
	}
}

type jsonSpan struct {
	tracer  *JSONTracer
	started time.Time
	once    sync.Once
}

func (s *jsonSpan) End(d Dispatch) {
	s.once.Do(func() {
		rec := TraceRecord{
			Operation:   d.Operation,
			Type:        d.Type,
			Outcome:     d.Outcome,
			Stage:       d.Stage.String(),
			Records:     d.Records,
			LinkUpdates: d.LinkUpdates,
			StartedAt:   s.started,
			DurationMS:  float64(d.Duration) / float64(time.Millisecond),
		}
		if d.Err != nil {
			rec.Error = d.Err.Error()
		}
		s.tracer.add(rec)
	})
}
