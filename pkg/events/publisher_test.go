package events

import (
	"context"
	"errors"
	"testing"
)

const publisherTestPrefix = "events:publisher_test"

func TestDiscard(t *testing.T) {
	if err := Discard.PublishSaved(context.Background(), &AssetSavedEvent{AssetID: "a1"}); err != nil {
		t.Errorf("%s - Discard returned %v", publisherTestPrefix, err)
	}
}

func TestPublisherFunc(t *testing.T) {
	var captured *AssetSavedEvent
	pub := PublisherFunc(func(_ context.Context, event *AssetSavedEvent) error {
		captured = event
		return nil
	})

	event := &AssetSavedEvent{AssetID: "a2", Format: "jpeg", Width: 640, Height: 480}
	if err := pub.PublishSaved(context.Background(), event); err != nil {
		t.Fatalf("%s - unexpected error: %v", publisherTestPrefix, err)
	}
	if captured != event {
		t.Errorf("%s - callback got %+v", publisherTestPrefix, captured)
	}
}

func TestMulti_RunsAllAndJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	errC := errors.New("c down")
	var calls []string
	record := func(name string, err error) EventPublisher {
		return PublisherFunc(func(context.Context, *AssetSavedEvent) error {
			calls = append(calls, name)
			return err
		})
	}

	pub := Multi(record("a", errA), nil, record("b", nil), record("c", errC))
	err := pub.PublishSaved(context.Background(), &AssetSavedEvent{AssetID: "a3"})

	if len(calls) != 3 || calls[0] != "a" || calls[1] != "b" || calls[2] != "c" {
		t.Errorf("%s - calls = %v, want [a b c]", publisherTestPrefix, calls)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("%s - err = %v, want both failures joined", publisherTestPrefix, err)
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := Multi().PublishSaved(context.Background(), &AssetSavedEvent{}); err != nil {
		t.Errorf("%s - empty Multi returned %v", publisherTestPrefix, err)
	}
}
