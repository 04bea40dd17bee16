package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPromise_ResolveOnce(t *testing.T) {
	p := NewPromise[int]()
	if err := p.Resolve(1); err != nil {
		t.Fatalf("async:future_test - first resolve: %v", err)
	}
	if err := p.Resolve(2); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("async:future_test - second resolve err = %v, want ErrAlreadySettled", err)
	}
	if err := p.Reject(errors.New("late")); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("async:future_test - reject after resolve err = %v, want ErrAlreadySettled", err)
	}

	v, err := p.Future().Await(context.Background())
	if err != nil {
		t.Fatalf("async:future_test - unexpected error: %v", err)
	}
	if v != 1 {
		t.Errorf("async:future_test - value = %d, want 1", v)
	}
}

func TestPromise_Reject(t *testing.T) {
	boom := errors.New("boom")
	f := Rejected[string](boom)
	_, err := f.Await(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("async:future_test - err = %v, want boom", err)
	}
}

func TestFuture_AwaitContextDone(t *testing.T) {
	p := NewPromise[bool]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Future().Await(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("async:future_test - err = %v, want context.Canceled", err)
	}
}

func TestGo(t *testing.T) {
	f := Go(func() (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	})

	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("async:future_test - timeout waiting for Go")
	}
	v, err := f.Await(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("async:future_test - got (%q, %v), want (ok, nil)", v, err)
	}
}

func TestGo_PanicRejects(t *testing.T) {
	f := Go(func() (int, error) {
		panic("store exploded")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := f.Await(ctx)

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("async:future_test - err = %v, want *PanicError", err)
	}
	if pe.Value != "store exploded" {
		t.Errorf("async:future_test - panic value = %v", pe.Value)
	}
	if len(pe.Stack) == 0 {
		t.Error("async:future_test - panic stack not captured")
	}
	if err.Error() != "async: panic: store exploded" {
		t.Errorf("async:future_test - message = %q", err.Error())
	}
}

func TestPromise_ConcurrentSettle(t *testing.T) {
	p := NewPromise[int]()
	wins := make(chan int, 16)
	for i := 0; i < 16; i++ {
		go func(i int) {
			if p.Resolve(i) == nil {
				wins <- i
			} else {
				wins <- -1
			}
		}(i)
	}

	winners := 0
	for i := 0; i < 16; i++ {
		if <-wins >= 0 {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("async:future_test - winners = %d, want 1", winners)
	}
}
