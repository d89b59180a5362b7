package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/agreement-orchestrator/internal/audit"
	"github.com/yungbote/agreement-orchestrator/internal/domain/agreement"
	"github.com/yungbote/agreement-orchestrator/internal/idempotency"
	"github.com/yungbote/agreement-orchestrator/internal/observability"
	"github.com/yungbote/agreement-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/agreement-orchestrator/internal/platform/logger"
	"github.com/yungbote/agreement-orchestrator/internal/retry"
)

// Step names used in errors, spans and metrics.
const (
	StepIdempotency = "idempotency"
	StepCreateDraft = "create-draft"
	StepEnrich      = "enrich-underwriting"
	StepPrice       = "price-offer"
	StepActivate    = "activate"
	StepDispatch    = "dispatch"
	StepCompensate  = "compensate"
	StepNotify      = "welcome-letter"
	StepFinalize    = "finalize"
)

type Config struct {
	// Dispatch governs retries of the UpdateStatusToSent step.
	Dispatch retry.Policy
	// LetterTimeout bounds the welcome letter call.
	LetterTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Dispatch: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			Factor:       2.0,
			Jitter:       true,
		},
		LetterTimeout: 5 * time.Second,
	}
}

type Option func(*Engine)

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithExecutor overrides the retry executor, mainly to stub out backoff waits.
func WithExecutor(x *retry.Executor) Option {
	return func(e *Engine) { e.retrier = x }
}

// Engine provisions agreements through Downstream as a saga guarded by an
// idempotency store. One Engine serves all requests concurrently.
type Engine struct {
	log        *logger.Logger
	downstream Downstream
	notifier   Notifier
	store      *idempotency.Store
	sink       *audit.Sink
	metrics    *observability.Metrics
	retrier    *retry.Executor
	cfg        Config
}

func NewEngine(
	baseLog *logger.Logger,
	downstream Downstream,
	notifier Notifier,
	store *idempotency.Store,
	sink *audit.Sink,
	cfg Config,
	opts ...Option,
) (*Engine, error) {
	if downstream == nil || notifier == nil || store == nil || sink == nil {
		return nil, fmt.Errorf("saga: engine not configured")
	}
	if cfg.Dispatch.MaxAttempts < 1 {
		return nil, fmt.Errorf("saga: dispatch policy: %w", retry.ErrInvalidPolicy)
	}
	if cfg.LetterTimeout <= 0 {
		cfg.LetterTimeout = DefaultConfig().LetterTimeout
	}
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	e := &Engine{
		log:        baseLog.With("service", "SagaEngine"),
		downstream: downstream,
		notifier:   notifier,
		store:      store,
		sink:       sink,
		retrier:    retry.Default(),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute provisions req under idempotencyKey. A repeat of an earlier
// successful request returns the cached response with ServedFromCache set.
// Failures are returned as *Error and are not cached.
func (e *Engine) Execute(ctx context.Context, req agreement.Request, correlationID, idempotencyKey string) (agreement.Result, error) {
	ctx = ctxutil.Default(ctx)
	if strings.TrimSpace(idempotencyKey) == "" {
		return agreement.Result{}, ErrMissingIdempotencyKey
	}
	if strings.TrimSpace(correlationID) == "" {
		correlationID = ctxutil.CorrelationID(ctx)
	}
	if strings.TrimSpace(correlationID) == "" {
		correlationID = uuid.NewString()
	}
	ctx = withCorrelationID(ctx, correlationID)
	req = req.Clone()

	ctx, span := observability.StartSpan(ctx, "saga.execute",
		attribute.String("saga.correlation_id", correlationID),
		attribute.String("saga.idempotency_key", idempotencyKey),
		attribute.String("agreement.product", req.ProductCode),
	)
	started := time.Now()
	res, outcome, err := e.execute(ctx, req, correlationID, idempotencyKey)
	span.SetAttributes(attribute.String("saga.outcome", outcome))
	observability.EndSpan(span, err)
	e.metrics.ObserveSaga(outcome, time.Since(started))
	return res, err
}

func (e *Engine) execute(ctx context.Context, req agreement.Request, correlationID, key string) (agreement.Result, string, error) {
	log := e.log.With("correlation_id", correlationID)

	claim, err := e.store.Claim(ctx, key, req)
	if err != nil {
		if errors.Is(err, idempotency.ErrConflict) {
			e.sink.Append(correlationID, "", audit.EventConflict)
			e.metrics.ObserveIdempotency("conflict", e.store.Len())
			log.Warn("idempotency key reused with a different request", "idempotency_key", key)
			return agreement.Result{}, "conflict", &Error{
				Kind:          KindConflict,
				Step:          StepIdempotency,
				CorrelationID: correlationID,
				Err:           err,
			}
		}
		return agreement.Result{}, "aborted", fmt.Errorf("saga: idempotency gate: %w", err)
	}
	if claim.Decision == idempotency.DecisionReplay {
		resp := claim.Record.Response
		e.sink.Append(correlationID, resp.AgreementID, audit.EventIdempotencyHit)
		e.metrics.ObserveIdempotency("replay", e.store.Len())
		log.Info("served from idempotency cache", "agreement_id", resp.AgreementID)
		return agreement.Result{Response: resp, ServedFromCache: true}, "replay", nil
	}
	e.metrics.ObserveIdempotency("acquired", e.store.Len())
	// Frees the key if a collaborator panics. No-op once the claim is settled.
	defer e.store.Release(claim)

	resp, err := e.run(ctx, log, req, correlationID)
	if err != nil {
		e.store.Release(claim)
		agreementID := ""
		var se *Error
		if errors.As(err, &se) {
			agreementID = se.AgreementID
		}
		e.sink.Append(correlationID, agreementID, audit.EventFailed)
		e.sink.Append(correlationID, agreementID, audit.EventEnd)
		log.Error("saga failed", "agreement_id", agreementID, "kind", KindOf(err).String(), "error", err)
		return agreement.Result{}, KindOf(err).String(), err
	}

	if _, err := e.store.Complete(claim, resp); err != nil {
		// The saga succeeded; the caller still gets its response.
		log.Error("failed to cache saga outcome", "agreement_id", resp.AgreementID, "error", err)
	}
	e.sink.Append(correlationID, resp.AgreementID, audit.EventEnd)
	log.Info("saga completed", "agreement_id", resp.AgreementID, "status", string(resp.Status), "premium", resp.Premium)
	return agreement.Result{Response: resp, ServedFromCache: false}, "success", nil
}

func (e *Engine) run(ctx context.Context, log *logger.Logger, req agreement.Request, correlationID string) (agreement.Response, error) {
	e.sink.Append(correlationID, "", audit.EventStart)

	var id string
	if err := e.step(ctx, StepCreateDraft, func(ctx context.Context) error {
		var err error
		id, err = e.downstream.CreateDraft(ctx, req)
		return err
	}); err != nil {
		return agreement.Response{}, e.upstreamFailure(correlationID, id, StepCreateDraft, err)
	}
	state := agreement.StateDraft
	e.sink.Append(correlationID, id, audit.EventDraftCreated)
	log = log.With("agreement_id", id)

	if err := e.step(ctx, StepEnrich, func(ctx context.Context) error {
		return e.downstream.EnrichUnderwriting(ctx, id)
	}); err != nil {
		return agreement.Response{}, e.upstreamFailure(correlationID, id, StepEnrich, err)
	}
	e.sink.Append(correlationID, id, audit.EventEnriched)

	var premium int64
	if err := e.step(ctx, StepPrice, func(ctx context.Context) error {
		var err error
		premium, err = e.downstream.PriceOffer(ctx, id)
		return err
	}); err != nil {
		return agreement.Response{}, e.upstreamFailure(correlationID, id, StepPrice, err)
	}
	state = agreement.StatePriced
	e.sink.Append(correlationID, id, audit.EventPriced)

	if err := e.step(ctx, StepActivate, func(ctx context.Context) error {
		return e.downstream.ActivateAgreement(ctx, id)
	}); err != nil {
		return agreement.Response{}, e.upstreamFailure(correlationID, id, StepActivate, err)
	}
	state = agreement.StateActive
	e.sink.Append(correlationID, id, audit.EventActivated)

	if err := e.dispatch(ctx, log, correlationID, id); err != nil {
		return agreement.Response{}, e.compensate(ctx, log, correlationID, id, err)
	}
	state = agreement.StateSent
	e.sink.Append(correlationID, id, audit.EventSent)

	if e.sendLetter(ctx, log, id, req.Recipient()) {
		e.sink.Append(correlationID, id, audit.EventLetterSent)
	} else {
		e.sink.Append(correlationID, id, audit.EventLetterFailed)
	}

	return agreement.Response{
		AgreementID:   id,
		Status:        e.finalStatus(ctx, log, id, state),
		Premium:       premium,
		CorrelationID: correlationID,
	}, nil
}

// withCorrelationID makes the resolved id visible to collaborators that read
// it from ctx. The caller's TraceData is copied, never mutated.
func withCorrelationID(ctx context.Context, correlationID string) context.Context {
	td := ctxutil.GetTraceData(ctx)
	if td != nil && td.CorrelationID == correlationID {
		return ctx
	}
	next := ctxutil.TraceData{}
	if td != nil {
		next = *td
	}
	next.CorrelationID = correlationID
	return ctxutil.WithTraceData(ctx, &next)
}

// step runs one unretried downstream call inside its own span.
func (e *Engine) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartSpan(ctx, "saga."+name)
	err := fn(ctx)
	observability.EndSpan(span, err)
	e.metrics.ObserveStep(name, statusLabel(err))
	return err
}

func (e *Engine) upstreamFailure(correlationID, agreementID, step string, err error) error {
	return &Error{
		Kind:          KindUpstreamStep,
		Step:          step,
		CorrelationID: correlationID,
		AgreementID:   agreementID,
		Err:           err,
	}
}

// dispatch moves the agreement to SENT under the retry policy. Every failed
// attempt is audited as sent-failed.
func (e *Engine) dispatch(ctx context.Context, log *logger.Logger, correlationID, id string) error {
	policy := e.cfg.Dispatch
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("dispatch attempt failed; retrying",
			"attempt", attempt,
			"max_attempts", policy.MaxAttempts,
			"delay", delay,
			"error", &Error{Kind: KindTransient, Step: StepDispatch, CorrelationID: correlationID, AgreementID: id, Err: err},
		)
	}
	ctx, span := observability.StartSpan(ctx, "saga."+StepDispatch,
		attribute.Int("retry.max_attempts", policy.MaxAttempts),
	)
	_, err := retry.Run(ctx, e.retrier, policy, func(ctx context.Context, attempt int) (struct{}, error) {
		err := e.downstream.UpdateStatusToSent(ctx, id)
		e.metrics.ObserveDispatchAttempt(err == nil)
		if err != nil {
			e.sink.Append(correlationID, id, audit.EventSentFailed)
			span.AddEvent("dispatch attempt failed", traceAttempt(attempt))
			return struct{}{}, err
		}
		return struct{}{}, nil
	})
	observability.EndSpan(span, err)
	e.metrics.ObserveStep(StepDispatch, statusLabel(err))
	return err
}

// compensate cancels the activation after dispatch gave up. It runs even when
// ctx is already done so a started saga is never left half-applied.
func (e *Engine) compensate(ctx context.Context, log *logger.Logger, correlationID, id string, dispatchErr error) error {
	permanent := &Error{
		Kind:          KindPermanent,
		Step:          StepDispatch,
		CorrelationID: correlationID,
		AgreementID:   id,
		Err:           dispatchErr,
	}
	cctx, span := observability.StartSpan(context.WithoutCancel(ctx), "saga."+StepCompensate)
	cerr := e.downstream.CancelActivation(cctx, id)
	observability.EndSpan(span, cerr)
	e.metrics.ObserveCompensation(cerr == nil)
	if cerr != nil {
		e.sink.Append(correlationID, id, audit.EventCompensationFailed)
		log.Error("compensation failed; agreement state unknown", "dispatch_error", dispatchErr, "error", cerr)
		return &Error{
			Kind:            KindMismatch,
			Step:            StepCompensate,
			CorrelationID:   correlationID,
			AgreementID:     id,
			Err:             permanent,
			CompensationErr: cerr,
		}
	}
	e.sink.Append(correlationID, id, audit.EventCompensated)
	log.Warn("dispatch failed permanently; activation cancelled", "error", dispatchErr)
	return &Error{
		Kind:          KindCompensated,
		Step:          StepDispatch,
		CorrelationID: correlationID,
		AgreementID:   id,
		Err:           permanent,
	}
}

// sendLetter is best effort: panics, timeouts and failures all read as false.
func (e *Engine) sendLetter(ctx context.Context, log *logger.Logger, id, recipient string) bool {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.LetterTimeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "saga."+StepNotify)
	defer span.End()

	done := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Warn("welcome letter panicked", "panic", fmt.Sprint(r))
				done <- false
			}
		}()
		done <- e.notifier.SendWelcomeLetter(ctx, id, recipient)
	}()

	var ok bool
	select {
	case ok = <-done:
	case <-ctx.Done():
		log.Warn("welcome letter timed out", "error", ctx.Err())
	}
	if !ok {
		log.Warn("welcome letter not delivered")
	}
	span.SetAttributes(attribute.Bool("letter.delivered", ok))
	e.metrics.ObserveLetter(ok)
	return ok
}

// finalStatus prefers the downstream view and falls back to the state the
// saga itself reached.
func (e *Engine) finalStatus(ctx context.Context, log *logger.Logger, id string, tracked agreement.State) agreement.State {
	var status agreement.State
	var found bool
	err := e.step(ctx, StepFinalize, func(ctx context.Context) error {
		var err error
		status, found, err = e.downstream.GetStatus(ctx, id)
		return err
	})
	if err != nil {
		log.Warn("status read-back failed; using tracked state", "tracked", string(tracked), "error", err)
		return tracked
	}
	if !found || !status.Valid() {
		log.Warn("status read-back returned nothing usable; using tracked state", "tracked", string(tracked))
		return tracked
	}
	return status
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func traceAttempt(attempt int) trace.EventOption {
	return trace.WithAttributes(attribute.Int("retry.attempt", attempt))
}
