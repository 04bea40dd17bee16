package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
)

const (
	logPrefix  = "dispatcher:dispatch"
	tracerName = "github.com/morezero/native-share/pkg/dispatcher"
)

// Reply messages.
const (
	msgInvalidArguments      = "Invalid arguments"
	msgNoPresentationContext = "No presentation context available"
	msgPermissionDenied      = "Photo library permission denied"
	msgSaveFailed            = "Failed to save image"
)

// Executor runs work on a designated execution context. fn receives a
// context bound to that execution context.
type Executor interface {
	Run(ctx context.Context, fn func(ctx context.Context)) error
}

// Recorder observes calls. Every CallStarted is followed by exactly one
// ObserveCall for the same call.
type Recorder interface {
	CallStarted(method string)
	ObserveCall(method, outcome string, elapsed time.Duration)
}

// Providers are the capability providers the dispatcher routes to.
type Providers struct {
	Images     capability.ImageLoader
	Surface    capability.PresentationSurface
	UI         Executor
	Authorizer capability.PhotoLibraryAuthorizer
	Writer     capability.PhotoLibraryWriter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// Dispatcher routes channel calls to capability providers. It holds no
// per-call state; every call owns its ReplySlot.
type Dispatcher struct {
	providers Providers
	recorder  Recorder
	tracer    trace.Tracer
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(p Providers, opts ...Option) *Dispatcher {
	d := &Dispatcher{providers: p}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Dispatch validates env synchronously, then completes the call on its own
// goroutine. The reply is delivered through slot exactly once. Dispatch
// never blocks on provider work.
func (d *Dispatcher) Dispatch(ctx context.Context, env *CallEnvelope, slot *ReplySlot) {
	start := time.Now()
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s caller=%s", logPrefix, env.Method, env.ID, caller(env)))
	if d.recorder != nil {
		d.recorder.CallStarted(env.Method)
	}

	ctx, span := d.tracer.Start(ctx, "dispatch "+env.Method,
		trace.WithAttributes(
			attribute.String("channel.method", env.Method),
			attribute.String("channel.call_id", env.ID),
		))

	finish := func(res CallResult) {
		if err := slot.Write(res); err != nil {
			slog.Error(fmt.Sprintf("%s - dropped second reply for id=%s: %v", logPrefix, env.ID, err))
			return
		}
		elapsed := time.Since(start)
		if d.recorder != nil {
			d.recorder.ObserveCall(env.Method, res.Outcome(), elapsed)
		}
		span.SetAttributes(attribute.String("channel.outcome", res.Outcome()))
		if res.Kind == KindFailure {
			span.SetStatus(codes.Error, res.Message)
		}
		span.End()
		slog.Debug(fmt.Sprintf("%s - id=%s outcome=%s elapsed=%s", logPrefix, env.ID, res.Outcome(), elapsed))
	}

	req, err := Validate(env.Method, env.Arguments)
	if err != nil {
		finish(rejection(err))
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(fmt.Sprintf("%s - provider panic for id=%s: %v", logPrefix, env.ID, r))
				finish(internalError(r))
			}
		}()
		finish(d.invoke(ctx, req))
	}()
}

// Call dispatches env and waits for its reply. For in-process callers.
func (d *Dispatcher) Call(ctx context.Context, env *CallEnvelope) *CallResponse {
	slot := NewReplySlot(env.ID, nil)
	d.Dispatch(ctx, env, slot)
	// Every path writes the slot, and cancelling ctx ends provider waits.
	res, _ := slot.Await(context.WithoutCancel(ctx))
	return res.Response(env.ID)
}

func (d *Dispatcher) invoke(ctx context.Context, req CallRequest) CallResult {
	switch r := req.(type) {
	case ShareImageRequest:
		return d.handleShareImage(ctx, r)
	case SaveImageRequest:
		return d.handleSaveImage(ctx, r)
	default:
		return NotImplemented()
	}
}

func (d *Dispatcher) handleShareImage(ctx context.Context, req ShareImageRequest) CallResult {
	img, res, ok := d.loadImage(req.ImagePath)
	if !ok {
		return res
	}

	if d.providers.UI == nil || d.providers.Surface == nil {
		return Failure(CodeNoPresentationContext, msgNoPresentationContext)
	}

	// The surface is only ever invoked from the UI loop; its future is handed back here.
	started := async.NewPromise[*async.Future[capability.Done]]()
	err := d.providers.UI.Run(ctx, func(uiCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				_ = started.Reject(async.NewPanicError(r))
			}
		}()
		_ = started.Resolve(d.providers.Surface.Present(uiCtx, img, req.Subject))
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - UI context unavailable: %v", logPrefix, err))
		return Failure(CodeNoPresentationContext, msgNoPresentationContext)
	}

	presented, err := started.Future().Await(ctx)
	if err == nil {
		_, err = awaitFuture(ctx, presented)
	}
	if res, ok := panicked(err); ok {
		return res
	}
	if err != nil {
		msg := msgNoPresentationContext
		if !errors.Is(err, capability.ErrSurfaceUnavailable) {
			msg = err.Error()
		}
		return Failure(CodeNoPresentationContext, msg)
	}
	return Success(true)
}

func (d *Dispatcher) handleSaveImage(ctx context.Context, req SaveImageRequest) CallResult {
	img, res, ok := d.loadImage(req.ImagePath)
	if !ok {
		return res
	}

	if d.providers.Authorizer == nil {
		return Failure(CodePermissionDenied, msgPermissionDenied)
	}
	state, err := awaitFuture(ctx, d.providers.Authorizer.RequestAuthorization(ctx))
	if res, ok := panicked(err); ok {
		return res
	}
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - authorization request failed: %v", logPrefix, err))
		return Failure(CodePermissionDenied, msgPermissionDenied)
	}
	if state != capability.Authorized {
		return Failure(CodePermissionDenied, msgPermissionDenied)
	}

	if d.providers.Writer == nil {
		return Failure(CodeOperationFailed, msgSaveFailed)
	}
	_, err = awaitFuture(ctx, d.providers.Writer.Write(ctx, img))
	if res, ok := panicked(err); ok {
		return res
	}
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = msgSaveFailed
		}
		return Failure(CodeOperationFailed, msg)
	}
	return Success(true)
}

func (d *Dispatcher) loadImage(path string) (*capability.Image, CallResult, bool) {
	notFound := Failure(CodeResourceNotFound, fmt.Sprintf("Image not found at path: %s", path))
	if d.providers.Images == nil {
		return nil, notFound, false
	}
	img, err := d.providers.Images.Load(path)
	if err != nil || img == nil {
		slog.Debug(fmt.Sprintf("%s - load %s: %v", logPrefix, path, err))
		return nil, notFound, false
	}
	return img, CallResult{}, true
}

// --- helpers ---

var errNoFuture = errors.New("provider returned no completion")

func awaitFuture[T any](ctx context.Context, f *async.Future[T]) (T, error) {
	if f == nil {
		var zero T
		return zero, errNoFuture
	}
	return f.Await(ctx)
}

// panicked turns a provider panic that surfaced as a future rejection into
// the same failure a panic on the dispatch goroutine produces.
func panicked(err error) (CallResult, bool) {
	var pe *async.PanicError
	if !errors.As(err, &pe) {
		return CallResult{}, false
	}
	slog.Error(fmt.Sprintf("%s - provider panic: %v\n%s", logPrefix, pe.Value, pe.Stack))
	return internalError(pe.Value), true
}

func internalError(v any) CallResult {
	return Failure(CodeOperationFailed, fmt.Sprintf("internal error: %v", v))
}

func rejection(err error) CallResult {
	if errors.Is(err, ErrNotImplemented) {
		return NotImplemented()
	}
	return Failure(CodeInvalidArguments, msgInvalidArguments)
}

func caller(env *CallEnvelope) string {
	if env.Ctx != nil && env.Ctx.Caller != "" {
		return env.Ctx.Caller
	}
	return "anonymous"
}
