package events

import (
	"context"
	"errors"
)

// EventPublisher is implemented by anything that can announce a saved asset.
type EventPublisher interface {
	PublishSaved(ctx context.Context, event *AssetSavedEvent) error
}

// PublisherFunc adapts an ordinary function to EventPublisher.
type PublisherFunc func(ctx context.Context, event *AssetSavedEvent) error

// PublishSaved calls f(ctx, event).
func (f PublisherFunc) PublishSaved(ctx context.Context, event *AssetSavedEvent) error {
	return f(ctx, event)
}

// Discard drops every event.
var Discard EventPublisher = PublisherFunc(func(context.Context, *AssetSavedEvent) error { return nil })

type multiPublisher []EventPublisher

// Multi returns a publisher that hands each event to every non-nil pub in
// order. All publishers run even when one fails; the errors are joined.
func Multi(pubs ...EventPublisher) EventPublisher {
	out := make(multiPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (m multiPublisher) PublishSaved(ctx context.Context, event *AssetSavedEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSaved(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
