package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/courier"
	"github.com/user/courier/pkg/pii"
	"github.com/user/courier/pkg/progress"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/user/courier/pkg/engine"

// Server messages may echo the submitted form back.
var redactor = pii.NewRedactor()

// State is the orchestrator's position in a submission run.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
)

// Config holds configuration for the Orchestrator.
type Config struct {
	AttemptTimeout time.Duration
	Progress       progress.Options
}

// DefaultConfig returns the default configuration for the Orchestrator.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout: 30 * time.Second,
		Progress:       progress.DefaultOptions(),
	}
}

// Orchestrator delivers a payload by trying the registry's channels in order
// until one succeeds. It runs one submission at a time.
type Orchestrator struct {
	registry   *Registry
	config     Config
	logger     courier.Logger
	tracer     trace.Tracer
	onProgress func(percent int)

	inFlight atomic.Bool

	mu      sync.Mutex
	state   State
	current int
}

func NewOrchestrator(registry *Registry) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		config:   DefaultConfig(),
		logger:   NewDefaultLogger(),
		tracer:   otel.Tracer(instrumentationName),
		state:    StateIdle,
		current:  -1,
	}
}

// SetConfig sets the configuration for the orchestrator.
func (o *Orchestrator) SetConfig(config Config) {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	o.config = config
}

// SetLogger sets the logger for the orchestrator and its channels.
func (o *Orchestrator) SetLogger(logger courier.Logger) {
	o.logger = logger
	o.registry.SetLogger(logger)
}

// SetTracerProvider replaces the global tracer provider for submission spans.
func (o *Orchestrator) SetTracerProvider(tp trace.TracerProvider) {
	o.tracer = tp.Tracer(instrumentationName)
}

// OnProgress registers the listener for percentage updates of every run.
func (o *Orchestrator) OnProgress(fn func(percent int)) {
	o.onProgress = fn
}

// Status returns the current state and the registry index being attempted (-1 when none).
func (o *Orchestrator) Status() (State, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.current
}

func (o *Orchestrator) setState(s State, index int) {
	o.mu.Lock()
	o.state = s
	o.current = index
	o.mu.Unlock()
}

// Submit builds a payload from the form values and delivers it.
func (o *Orchestrator) Submit(ctx context.Context, fields courier.Fields, file courier.Blob) *courier.Result {
	if !o.begin() {
		return o.rejectInFlight()
	}
	defer o.end()

	o.setState(StateValidating, -1)
	p, err := courier.Build(fields, file)
	if err != nil {
		return o.rejectInvalid(err)
	}
	return o.run(ctx, p)
}

// Deliver sends an already built payload.
func (o *Orchestrator) Deliver(ctx context.Context, p *courier.Payload) *courier.Result {
	if !o.begin() {
		return o.rejectInFlight()
	}
	defer o.end()

	o.setState(StateValidating, -1)
	if err := p.Validate(); err != nil {
		return o.rejectInvalid(err)
	}
	return o.run(ctx, p)
}

func (o *Orchestrator) begin() bool {
	if !o.inFlight.CompareAndSwap(false, true) {
		return false
	}
	SubmissionsInFlight.Inc()
	return true
}

func (o *Orchestrator) end() {
	o.setState(StateIdle, -1)
	SubmissionsInFlight.Dec()
	o.inFlight.Store(false)
}

func (o *Orchestrator) rejectInFlight() *courier.Result {
	SubmissionsRejected.WithLabelValues("in_flight").Inc()
	o.logger.Warn("Submission rejected, another one is still running")
	return &courier.Result{Kind: courier.TotalFailure, Attempts: []courier.Attempt{}, Err: courier.ErrInFlight}
}

func (o *Orchestrator) rejectInvalid(err error) *courier.Result {
	SubmissionsRejected.WithLabelValues("validation").Inc()
	Submissions.WithLabelValues(string(courier.TotalFailure)).Inc()
	o.logger.Warn("Submission rejected", "error", err)
	return &courier.Result{Kind: courier.TotalFailure, Attempts: []courier.Attempt{}, Err: err}
}

func (o *Orchestrator) run(ctx context.Context, p *courier.Payload) *courier.Result {
	entries := o.registry.Entries()
	result := &courier.Result{
		SubmissionID: p.ID(),
		Attempts:     make([]courier.Attempt, 0, len(entries)),
	}

	ctx, span := o.tracer.Start(ctx, "courier.submit", trace.WithAttributes(
		attribute.String("courier.submission_id", p.ID()),
		attribute.Int("courier.channels", len(entries)),
		attribute.Int64("courier.file_size", p.File().Size()),
	))
	defer func() { endSubmitSpan(span, result) }()

	ctrl := progress.NewController(o.config.Progress, o.onProgress)
	ctrl.Start()

	o.logger.Info("Submission started",
		"submission_id", p.ID(),
		"email", pii.MaskEmail(p.Fields().Email),
		"phone", pii.MaskPartial(p.Fields().PhoneNumber),
		"file", p.File().Name(),
		"size", p.File().Size(),
		"channels", len(entries),
	)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			ctrl.Finish(false)
			result.Kind = courier.TotalFailure
			result.Err = fmt.Errorf("submission canceled after %d of %d channels: %w", i, len(entries), err)
			Submissions.WithLabelValues(string(result.Kind)).Inc()
			o.logger.Warn("Submission canceled", "submission_id", p.ID(), "attempted", i, "error", err)
			return result
		}

		o.setState(StateAttempting, i)
		a := o.attempt(ctx, i, e, p, ctrl)
		result.Attempts = append(result.Attempts, a)

		if a.Outcome.Success {
			ctrl.Finish(true)
			o.setState(StateSucceeded, i)

			result.Kind = classify(e.Channel)
			result.Locator = a.Outcome.Locator
			result.Channel = e.Label
			Submissions.WithLabelValues(string(result.Kind)).Inc()
			o.logger.Info("Submission finished",
				"submission_id", p.ID(),
				"channel", e.Label,
				"result", result.Kind,
				"locator", result.Locator,
				"attempts", len(result.Attempts),
			)
			return result
		}

		o.logger.Warn("Channel failed, trying next",
			"submission_id", p.ID(),
			"channel", e.Label,
			"index", i,
			"failure", a.Outcome.String(),
			"message", redactor.Redact(a.Outcome.Message),
			"redacted", redactor.Discover(a.Outcome.Message),
		)
	}

	ctrl.Finish(false)
	o.setState(StateExhausted, len(entries)-1)

	result.Kind = courier.TotalFailure
	result.Err = &courier.ExhaustedError{Attempts: result.Attempts}
	Submissions.WithLabelValues(string(result.Kind)).Inc()
	o.logger.Error("All channels failed", "submission_id", p.ID(), "error", result.Err)
	return result
}

// attempt runs one channel with the per-channel timeout. A channel that ignores
// its context is abandoned at the deadline and its late outcome is discarded.
func (o *Orchestrator) attempt(ctx context.Context, index int, e Entry, p *courier.Payload, ctrl *progress.Controller) courier.Attempt {
	timeout := o.config.AttemptTimeout
	ctx, span := o.tracer.Start(ctx, "courier.attempt", trace.WithAttributes(
		attribute.String("courier.channel", e.Label),
		attribute.Int("courier.index", index),
		attribute.String("courier.delivery", string(e.Channel.Delivery())),
	))
	defer span.End()

	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gate := &progressGate{live: true, report: ctrl.ReportReal}
	defer gate.close()
	actx = courier.WithProgress(actx, gate.forward)

	start := time.Now()
	done := make(chan courier.Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- courier.Failed(courier.FailureUnsupported, "channel panicked: %v", r)
			}
		}()
		done <- e.Channel.Attempt(actx, p, timeout)
	}()

	var out courier.Outcome
	select {
	case out = <-done:
	case <-actx.Done():
		select {
		case out = <-done:
		default:
			if ctx.Err() != nil {
				out = courier.Failed(courier.FailureNetworkUnreachable, "submission canceled: %v", ctx.Err())
			} else {
				out = courier.Failed(courier.FailureTimeout, "no response within %s", timeout)
			}
		}
	}

	elapsed := time.Since(start)
	ChannelAttemptDuration.WithLabelValues(e.Label).Observe(elapsed.Seconds())
	ChannelAttempts.WithLabelValues(e.Label, outcomeLabel(out)).Inc()

	span.SetAttributes(attribute.String("courier.outcome", outcomeLabel(out)))
	if !out.Success {
		if out.StatusCode != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode))
		}
		span.SetStatus(codes.Error, redactor.Redact(out.Message))
	}

	return courier.Attempt{Label: e.Label, Outcome: out, Duration: elapsed}
}

func endSubmitSpan(span trace.Span, result *courier.Result) {
	span.SetAttributes(attribute.String("courier.result", string(result.Kind)))
	if result.Channel != "" {
		span.SetAttributes(attribute.String("courier.channel", result.Channel))
	}
	if result.Kind == courier.TotalFailure && result.Err != nil {
		span.SetStatus(codes.Error, result.Err.Error())
	}
	span.End()
}

func classify(ch courier.Channel) courier.ResultKind {
	if ch.Delivery() == courier.DeliveryRemote {
		return courier.HardSuccess
	}
	return courier.SoftSuccess
}

func outcomeLabel(out courier.Outcome) string {
	if out.Success {
		return "success"
	}
	return out.Kind.String()
}

// progressGate drops progress reported by an attempt that has already resolved.
type progressGate struct {
	mu     sync.Mutex
	live   bool
	report func(int)
}

func (g *progressGate) forward(percent int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.live {
		g.report(percent)
	}
}

func (g *progressGate) close() {
	g.mu.Lock()
	g.live = false
	g.mu.Unlock()
}
