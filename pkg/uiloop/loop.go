// Package uiloop provides the designated execution context that owns visual
// presentation. Work is queued onto a single goroutine pinned to its OS
// thread and executed in submission order.
package uiloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
)

const logPrefix = "uiloop:loop"

// ErrNotRunning is returned when work is submitted to a loop that has not
// been started or has been stopped.
var ErrNotRunning = errors.New("uiloop: loop is not running")

type loopKey struct{}

// Loop is a serial executor bound to one OS thread.
type Loop struct {
	name  string
	depth int

	mu  sync.Mutex
	gen *generation
}

// generation is the state of one Start/Stop cycle.
type generation struct {
	queue   chan task
	quit    chan struct{}
	stopped chan struct{}
	// Run calls between admission and enqueue
	senders sync.WaitGroup
}

type task struct {
	ctx context.Context
	fn  func(ctx context.Context)
}

// New creates a loop with the given queue depth. Call Start before Run.
func New(name string, depth int) *Loop {
	if depth <= 0 {
		depth = 64
	}
	return &Loop{name: name, depth: depth}
}

// Name returns the loop name.
func (l *Loop) Name() string {
	return l.name
}

// Start launches the loop goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != nil {
		return
	}
	g := &generation{
		queue:   make(chan task, l.depth),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	l.gen = g
	go l.run(g)
	slog.Info(fmt.Sprintf("%s - Loop %s started", logPrefix, l.name))
}

func (l *Loop) run(g *generation) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(g.stopped)

	for t := range g.queue {
		l.execute(t)
	}
}

func (l *Loop) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - Loop %s task panicked: %v", logPrefix, l.name, r))
		}
	}()
	t.fn(context.WithValue(t.ctx, loopKey{}, l))
}

// Run queues fn onto the loop. fn receives ctx marked as running on this loop.
// Run returns without waiting for fn. If the queue is full Run blocks until
// there is room, ctx is done, or the loop is stopped.
func (l *Loop) Run(ctx context.Context, fn func(ctx context.Context)) error {
	if l == nil {
		return ErrNotRunning
	}
	l.mu.Lock()
	g := l.gen
	if g == nil {
		l.mu.Unlock()
		return ErrNotRunning
	}
	g.senders.Add(1)
	l.mu.Unlock()
	defer g.senders.Done()

	select {
	case g.queue <- task{ctx: ctx, fn: fn}:
		return nil
	case <-g.quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop accepts work.
func (l *Loop) Running() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen != nil
}

// Stop stops accepting work, drains queued tasks, and waits for the loop to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	g := l.gen
	if g == nil {
		l.mu.Unlock()
		return
	}
	l.gen = nil
	close(g.quit)
	l.mu.Unlock()

	// Blocked senders leave through quit; the queue can then be closed safely.
	g.senders.Wait()
	close(g.queue)
	<-g.stopped
	slog.Info(fmt.Sprintf("%s - Loop %s stopped", logPrefix, l.name))
}

// Current returns the loop ctx is running on, or nil.
func Current(ctx context.Context) *Loop {
	l, _ := ctx.Value(loopKey{}).(*Loop)
	return l
}

// OnLoop reports whether ctx was handed out by a running loop task.
func OnLoop(ctx context.Context) bool {
	return Current(ctx) != nil
}
