package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SavedSubject overrides the saved event subject (e.g. from SAVED_EVENT_SUBJECT).
	SavedSubject string
}

// CommsPublisher publishes gallery events to COMMS subjects.
type CommsPublisher struct {
	nc           *comms.Conn
	savedSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	subject := commsutil.SubjectSavedEvent
	if opts != nil && opts.SavedSubject != "" {
		subject = opts.SavedSubject
	}
	return &CommsPublisher{nc: nc, savedSubject: subject}
}

// Subject returns the subject saved events are published on.
func (p *CommsPublisher) Subject() string {
	return p.savedSubject
}

// PublishSaved publishes an AssetSavedEvent to the saved subject and to a
// per-format sub-subject (e.g. native_share.events.saved.png).
func (p *CommsPublisher) PublishSaved(_ context.Context, event *AssetSavedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	if err := p.nc.Publish(p.savedSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.savedSubject, err))
		return err
	}

	if event.Format != "" {
		formatSubject := commsutil.BuildChannelSubject(p.savedSubject, commsutil.SafeToken(event.Format))
		if err := p.nc.Publish(formatSubject, data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, formatSubject, err))
			return err
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published saved event for asset %s", commsPublisherLogPrefix, event.AssetID))
	return nil
}
