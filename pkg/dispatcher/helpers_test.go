package dispatcher

import (
	"context"
	"encoding/json"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/uiloop"
)

// fakeLoader resolves any path listed in images.
type fakeLoader struct {
	images map[string]bool
	calls  atomic.Int32
}

func (l *fakeLoader) Load(path string) (*capability.Image, error) {
	l.calls.Add(1)
	if !l.images[path] {
		return nil, capability.ErrImageNotFound
	}
	return &capability.Image{Path: path, Format: "png", Img: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
}

type fakeSurface struct {
	err    error
	panics bool
	calls  atomic.Int32
	onLoop atomic.Bool
	label  atomic.Value
}

func (s *fakeSurface) Present(ctx context.Context, _ *capability.Image, label string) *async.Future[capability.Done] {
	s.calls.Add(1)
	s.onLoop.Store(uiloop.OnLoop(ctx))
	s.label.Store(label)
	if s.panics {
		panic("surface exploded")
	}
	if s.err != nil {
		return async.Rejected[capability.Done](s.err)
	}
	return async.Go(func() (capability.Done, error) {
		time.Sleep(time.Millisecond)
		return capability.Done{}, nil
	})
}

type fakeAuthorizer struct {
	state  capability.AuthorizationState
	err    error
	block  bool
	panics bool
	calls  atomic.Int32
}

func (a *fakeAuthorizer) RequestAuthorization(context.Context) *async.Future[capability.AuthorizationState] {
	a.calls.Add(1)
	if a.block {
		return async.NewPromise[capability.AuthorizationState]().Future()
	}
	if a.panics {
		return async.Go(func() (capability.AuthorizationState, error) {
			panic("state store exploded")
		})
	}
	if a.err != nil {
		return async.Rejected[capability.AuthorizationState](a.err)
	}
	return async.Resolved(a.state)
}

type fakeWriter struct {
	err         error
	panics      bool
	asyncPanics bool
	calls       atomic.Int32
	written     sync.Map
}

func (w *fakeWriter) Write(_ context.Context, img *capability.Image) *async.Future[capability.Done] {
	w.calls.Add(1)
	if w.panics {
		panic("writer exploded")
	}
	if w.asyncPanics {
		return async.Go(func() (capability.Done, error) {
			panic("asset store exploded")
		})
	}
	if w.err != nil {
		return async.Rejected[capability.Done](w.err)
	}
	w.written.Store(img.Path, true)
	return async.Resolved(capability.Done{})
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	outcomes []string
}

func (r *fakeRecorder) CallStarted(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
}

func (r *fakeRecorder) ObserveCall(method, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, method+":"+outcome)
}

// countingSink counts writes per call id.
type countingSink struct {
	mu     sync.Mutex
	counts map[string]int
	last   map[string]CallResult
}

func newCountingSink() *countingSink {
	return &countingSink{counts: map[string]int{}, last: map[string]CallResult{}}
}

func (c *countingSink) sink(id string, res CallResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[id]++
	c.last[id] = res
}

type testBridge struct {
	loader     *fakeLoader
	surface    *fakeSurface
	authorizer *fakeAuthorizer
	writer     *fakeWriter
	loop       *uiloop.Loop
	recorder   *fakeRecorder
	disp       *Dispatcher
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	b := &testBridge{
		loader:     &fakeLoader{images: map[string]bool{"/img/ok.png": true}},
		surface:    &fakeSurface{},
		authorizer: &fakeAuthorizer{state: capability.Authorized},
		writer:     &fakeWriter{},
		loop:       uiloop.New("test-ui", 8),
		recorder:   &fakeRecorder{},
	}
	b.loop.Start()
	t.Cleanup(b.loop.Stop)
	b.rebuild()
	return b
}

func (b *testBridge) rebuild() {
	b.disp = NewDispatcher(Providers{
		Images:     b.loader,
		Surface:    b.surface,
		UI:         b.loop,
		Authorizer: b.authorizer,
		Writer:     b.writer,
	}, WithRecorder(b.recorder))
}

func envelope(t *testing.T, id, method string, args interface{}) *CallEnvelope {
	t.Helper()
	env := &CallEnvelope{ID: id, Method: method}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			t.Fatalf("dispatcher:helpers_test - marshal args: %v", err)
		}
		env.Arguments = raw
	}
	return env
}

func awaitSlot(t *testing.T, slot *ReplySlot) CallResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := slot.Await(ctx)
	if err != nil {
		t.Fatalf("dispatcher:helpers_test - timeout waiting for reply to %s", slot.ID())
	}
	return res
}
