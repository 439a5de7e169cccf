// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"openai-cli/internal/logging"
	"openai-cli/internal/models"
	"openai-cli/internal/session"
)

const instrumentationName = "openai-cli/orchestrator"

var (
	ErrNoModels         = errors.New("no models to run")
	ErrCoordinatorInUse = errors.New("coordinator already holds a batch; reset it or create a new one")
	ErrExecutorPanicked = errors.New("model executor panicked")
)

// Sink receives the winner's fragments as they arrive
type Sink interface {
	Live(spec models.Spec, fragment string)
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(spec models.Spec, fragment string)

func (f SinkFunc) Live(spec models.Spec, fragment string) { f(spec, fragment) }

// Orchestrator runs batches of models against one transport
type Orchestrator struct {
	streamer models.Streamer
	logger   *slog.Logger
	tracer   trace.Tracer

	results    metric.Int64Counter
	firstChunk metric.Float64Histogram
	duration   metric.Float64Histogram
}

func New(streamer models.Streamer, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		streamer: streamer,
		logger:   logging.OrDiscard(logger),
		tracer:   otel.Tracer(instrumentationName),
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if o.results, err = meter.Int64Counter("model.results",
		metric.WithDescription("Finished model executions by outcome")); err != nil {
		o.logger.Warn("metric init", "instrument", "model.results", "error", err)
	}
	if o.firstChunk, err = meter.Float64Histogram("model.first_chunk",
		metric.WithDescription("Time until the first streamed fragment"), metric.WithUnit("s")); err != nil {
		o.logger.Warn("metric init", "instrument", "model.first_chunk", "error", err)
	}
	if o.duration, err = meter.Float64Histogram("model.duration",
		metric.WithDescription("Wall-clock time of one model execution"), metric.WithUnit("s")); err != nil {
		o.logger.Warn("metric init", "instrument", "model.duration", "error", err)
	}
	return o
}

// ExecuteModel runs one model as a race participant. The first fragment it
// observes asks the coordinator for the winner slot; the winner forwards
// every fragment to sink live, the others keep them buffered in the session.
// Whatever happens, exactly one ModelResult is reported to the coordinator
// and returned.
func (o *Orchestrator) ExecuteModel(ctx context.Context, spec models.Spec, messages []models.Message, c *Coordinator, sink Sink) (result ModelResult) {
	start := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("model.provider", spec.Provider),
		attribute.String("model.name", spec.Model),
	}
	ctx, span := o.tracer.Start(ctx, "model.execute", trace.WithAttributes(attrs...))
	defer span.End()

	won := false
	result = ModelResult{Spec: spec}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("executor panicked", "model", spec.String(), "panic", r)
			result.Success = false
			result.Err = fmt.Errorf("%w: %v", ErrExecutorPanicked, r)
		}
		result.Duration = time.Since(start)
		result.Winner = won

		outcome := outcomeOf(result)
		span.SetAttributes(attribute.String("model.outcome", outcome), attribute.Bool("model.winner", won))
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		o.record(ctx, attrs, outcome, result.Duration)

		c.CompleteModel(spec, result)
	}()

	s, err := session.New(ctx, o.streamer, messages, &spec, session.WithLogger(o.logger))
	if err != nil {
		result.Err = err
		return result
	}
	defer s.Dispose()

	first := true
	s.On(session.EventChunk, func(ev session.Event) {
		if first {
			first = false
			if o.firstChunk != nil {
				o.firstChunk.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			}
			won = c.SetWinner(spec)
			if won {
				span.AddEvent("winner")
				o.logger.Debug("streaming live", "model", spec.String())
			}
		}
		if won && sink != nil {
			sink.Live(spec, ev.Chunk)
		}
	})

	res, err := s.Start()
	switch {
	case err != nil:
		result.Err = err
		result.Text = res.Text
	case res.Aborted:
		result.Aborted = true
		result.Text = res.Text
	default:
		result.Success = true
		result.Text = res.Text
	}
	return result
}

// ExecuteModelsRace launches every model concurrently against the same
// cancellation context and waits until all of them have reported and the
// coordinator has drained. It returns how many models succeeded. Individual
// failures never abort siblings; only precondition violations return an error.
func (o *Orchestrator) ExecuteModelsRace(ctx context.Context, specs []models.Spec, messages []models.Message, c *Coordinator, sink Sink) (int, error) {
	if ctx == nil {
		return 0, fmt.Errorf("%w: cancellation context is required", session.ErrInvalidArgument)
	}
	if len(messages) == 0 {
		return 0, fmt.Errorf("%w: at least one message is required", session.ErrInvalidArgument)
	}
	if c == nil {
		return 0, fmt.Errorf("%w: coordinator is required", session.ErrInvalidArgument)
	}
	specs = dedupe(specs)
	if len(specs) == 0 {
		return 0, ErrNoModels
	}
	if c.inUse() {
		return 0, ErrCoordinatorInUse
	}

	batchID := uuid.NewString()
	logger := o.logger.With("batch", batchID)
	ctx, span := o.tracer.Start(ctx, "batch.race", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.models", len(specs)),
	))
	defer span.End()

	logger.Info("batch started", "models", len(specs))

	dones := make([]chan struct{}, len(specs))
	for i, spec := range specs {
		dones[i] = make(chan struct{})
		c.RegisterModel(spec, dones[i])
	}
	drained := c.Drained()

	results := make([]ModelResult, len(specs))
	for i, spec := range specs {
		go func(i int, spec models.Spec) {
			defer close(dones[i])
			results[i] = o.ExecuteModel(ctx, spec, messages, c, sink)
		}(i, spec)
	}

	for _, done := range dones {
		<-done
	}
	select {
	case <-drained:
	case <-ctx.Done():
	}

	summary := Summarize(results)
	span.SetAttributes(
		attribute.Int("batch.succeeded", summary.Succeeded),
		attribute.Int("batch.failed", summary.Failed),
		attribute.Int("batch.aborted", summary.Aborted),
	)
	logger.Info("batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"aborted", summary.Aborted,
		"total", summary.Total,
	)

	return summary.Succeeded, nil
}

func (o *Orchestrator) record(ctx context.Context, attrs []attribute.KeyValue, outcome string, d time.Duration) {
	// ctx may already be cancelled; metrics are recorded regardless
	ctx = context.WithoutCancel(ctx)
	withOutcome := metric.WithAttributes(append(attrs, attribute.String("model.outcome", outcome))...)
	if o.results != nil {
		o.results.Add(ctx, 1, withOutcome)
	}
	if o.duration != nil {
		o.duration.Record(ctx, d.Seconds(), withOutcome)
	}
}

func outcomeOf(r ModelResult) string {
	switch {
	case r.Success:
		return "success"
	case r.Aborted:
		return "aborted"
	default:
		return "failed"
	}
}

// dedupe drops repeated specs, keeping the first occurrence.
func dedupe(specs []models.Spec) []models.Spec {
	seen := make(map[models.Spec]bool, len(specs))
	out := make([]models.Spec, 0, len(specs))
	for _, spec := range specs {
		if seen[spec] {
			continue
		}
		seen[spec] = true
		out = append(out, spec)
	}
	return out
}
