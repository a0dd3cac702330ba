package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/bpforge/internal/shared/id"
)

// Propagation headers
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

// TraceID identifies one trace
type TraceID string

// SpanID identifies one span within a trace
type SpanID string

// Span is one timed operation. A span belongs to a single goroutine until it
// is submitted.
type Span struct {
	TraceID  TraceID
	SpanID   SpanID
	ParentID SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Err      error

	tags []zap.Field
}

// SetTag attaches a string attribute
func (s *Span) SetTag(key, value string) {
	s.tags = append(s.tags, zap.String(key, value))
}

// SetError marks the span failed
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish closes the span now
func (s *Span) Finish() {
	s.FinishAt(time.Now())
}

// FinishAt closes the span at end; spans reconstructed from events use the
// event timestamp
func (s *Span) FinishAt(end time.Time) {
	if end.Before(s.Start) {
		end = s.Start
	}
	s.Duration = end.Sub(s.Start)
}

// Tracer writes finished spans to the log from a single collector goroutine
type Tracer struct {
	service string
	logger  *zap.Logger
	queue   chan *Span
	stopped chan struct{}
	close   sync.Once
}

// New creates a tracer and starts its collector
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.With(zap.String("service", service)),
		queue:   make(chan *Span, 1024),
		stopped: make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span now, as a child of the span carried by ctx or as a
// new trace root
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	return t.StartSpanAt(ctx, name, time.Now())
}

// StartSpanAt opens a span that began at start
func (t *Tracer) StartSpanAt(ctx context.Context, name string, start time.Time) (*Span, context.Context) {
	trace := GetTraceID(ctx)
	if trace == "" {
		trace = TraceID(id.NewRequestID())
	}
	span := &Span{
		TraceID:  trace,
		SpanID:   SpanID(id.NewRequestID()),
		ParentID: GetSpanID(ctx),
		Name:     name,
		Start:    start,
	}
	return span, withSpan(ctx, trace, span.SpanID)
}

// Submit queues a finished span. Spans are dropped when the queue is full or
// the tracer is closed.
func (t *Tracer) Submit(span *Span) {
	select {
	case <-t.stopped:
		return
	default:
	}
	defer func() { _ = recover() }()
	select {
	case t.queue <- span:
	default:
		t.logger.Warn("Span queue full, dropping span", zap.String("span", span.Name), zap.String("trace_id", string(span.TraceID)))
	}
}

// Close flushes queued spans and stops the collector
func (t *Tracer) Close() {
	t.close.Do(func() {
		close(t.queue)
		<-t.stopped
	})
}

func (t *Tracer) collect() {
	defer close(t.stopped)
	for span := range t.queue {
		t.write(span)
	}
}

func (t *Tracer) write(span *Span) {
	fields := make([]zap.Field, 0, len(span.tags)+6)
	fields = append(fields,
		zap.String("span", span.Name),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.Duration("duration", span.Duration),
	)
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	fields = append(fields, span.tags...)

	if span.Err != nil {
		t.logger.Warn("Span failed", append(fields, zap.Error(span.Err))...)
		return
	}
	t.logger.Debug("Span finished", fields...)
}

// Headers returns the propagation headers for the span in ctx
func Headers(ctx context.Context) map[string]string {
	headers := make(map[string]string, 2)
	if trace := GetTraceID(ctx); trace != "" {
		headers[HeaderTraceID] = string(trace)
	}
	if span := GetSpanID(ctx); span != "" {
		headers[HeaderSpanID] = string(span)
	}
	return headers
}

// Extract returns ctx continuing the trace described by h
func Extract(ctx context.Context, h http.Header) context.Context {
	trace := TraceID(h.Get(HeaderTraceID))
	if trace == "" {
		return ctx
	}
	return withSpan(ctx, trace, SpanID(h.Get(HeaderSpanID)))
}

type spanContext struct {
	trace TraceID
	span  SpanID
}

type contextKey struct{}

func withSpan(ctx context.Context, trace TraceID, span SpanID) context.Context {
	return context.WithValue(ctx, contextKey{}, spanContext{trace: trace, span: span})
}

// GetTraceID returns the trace carried by ctx
func GetTraceID(ctx context.Context) TraceID {
	sc, _ := ctx.Value(contextKey{}).(spanContext)
	return sc.trace
}

// GetSpanID returns the current span carried by ctx
func GetSpanID(ctx context.Context) SpanID {
	sc, _ := ctx.Value(contextKey{}).(spanContext)
	return sc.span
}
