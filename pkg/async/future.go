// Package async provides single-assignment promise/future pairs used to model
// one-shot completion of capability providers.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
)

// ErrAlreadySettled is returned when a promise is resolved or rejected twice.
var ErrAlreadySettled = errors.New("async: promise already settled")

// PanicError is the rejection of a promise whose producer panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// NewPanicError wraps a recovered value together with the current stack.
func NewPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("async: panic: %v", e.Value)
}

type outcome[T any] struct {
	value T
	err   error
}

// Promise is the write side of a single-assignment result cell.
type Promise[T any] struct {
	settled atomic.Bool
	done    chan struct{}
	result  outcome[T]
}

// Future is the read side of a Promise.
type Future[T any] struct {
	p *Promise[T]
}

// NewPromise creates an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Future returns the read side bound to this promise.
func (p *Promise[T]) Future() *Future[T] {
	return &Future[T]{p: p}
}

// Resolve settles the promise with a value.
func (p *Promise[T]) Resolve(v T) error {
	return p.settle(outcome[T]{value: v})
}

// Reject settles the promise with an error.
func (p *Promise[T]) Reject(err error) error {
	return p.settle(outcome[T]{err: err})
}

func (p *Promise[T]) settle(o outcome[T]) error {
	if !p.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	p.result = o
	close(p.done)
	return nil
}

// Done is closed once the promise is settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.p.done
}

// Await blocks until the promise settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.p.done:
		return f.p.result.value, f.p.result.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	_ = p.Resolve(v)
	return p.Future()
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	p := NewPromise[T]()
	_ = p.Reject(err)
	return p.Future()
}

// Go runs fn on a new goroutine and settles the returned future with its
// result. A panic in fn rejects the future with a *PanicError.
func Go[T any](fn func() (T, error)) *Future[T] {
	p := NewPromise[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				_ = p.Reject(NewPanicError(r))
			}
		}()
		v, err := fn()
		if err != nil {
			_ = p.Reject(err)
			return
		}
		_ = p.Resolve(v)
	}()
	return p.Future()
}
