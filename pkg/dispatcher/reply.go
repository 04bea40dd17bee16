package dispatcher

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/morezero/native-share/pkg/async"
)

// ErrReplyAlreadySent is returned when a slot is written a second time.
var ErrReplyAlreadySent = errors.New("dispatcher: reply already sent")

// Sink receives the single reply of a call.
type Sink func(id string, res CallResult)

// ReplySlot is the single-assignment cell bound to one call. Only the first
// Write reaches the sink.
type ReplySlot struct {
	id      string
	sink    Sink
	claimed atomic.Bool
	promise *async.Promise[CallResult]
}

// NewReplySlot creates a slot for the call with the given id. sink may be nil
// when the caller only awaits the slot.
func NewReplySlot(id string, sink Sink) *ReplySlot {
	return &ReplySlot{
		id:      id,
		sink:    sink,
		promise: async.NewPromise[CallResult](),
	}
}

// ID returns the correlation id of the call.
func (s *ReplySlot) ID() string {
	return s.id
}

// Write hands res to the sink and then settles the slot. Done is closed only
// after the sink has returned.
func (s *ReplySlot) Write(res CallResult) error {
	if !s.claimed.CompareAndSwap(false, true) {
		return ErrReplyAlreadySent
	}
	defer s.promise.Resolve(res)
	if s.sink != nil {
		s.sink(s.id, res)
	}
	return nil
}

// Done is closed once the slot has been written.
func (s *ReplySlot) Done() <-chan struct{} {
	return s.promise.Future().Done()
}

// Await blocks until the slot is written or ctx is done.
func (s *ReplySlot) Await(ctx context.Context) (CallResult, error) {
	return s.promise.Future().Await(ctx)
}
