// Package sheet presents share sheets on a remote UI host over COMMS.
package sheet

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/uiloop"
)

const logPrefix = "sheet:surface"

// Request is the payload sent to the UI host.
type Request struct {
	Label  string `json:"label"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Image  []byte `json:"image"`
}

// Reply is the UI host's answer once the sheet has been shown.
type Reply struct {
	Presented bool   `json:"presented"`
	Reason    string `json:"reason,omitempty"`
}

// Surface implements capability.PresentationSurface by asking a UI host to
// show a share sheet.
type Surface struct {
	nc      *comms.Conn
	subject string
}

// NewSurface creates a Surface publishing on subject (commsutil.SubjectSheet if empty).
func NewSurface(nc *comms.Conn, subject string) *Surface {
	if subject == "" {
		subject = commsutil.SubjectSheet
	}
	return &Surface{nc: nc, subject: subject}
}

// Present must be called from a UI loop task. The request is issued on the
// loop; waiting for the host happens off the loop.
func (s *Surface) Present(ctx context.Context, img *capability.Image, label string) *async.Future[capability.Done] {
	if !uiloop.OnLoop(ctx) {
		return async.Rejected[capability.Done](capability.ErrWrongExecutionContext)
	}
	if s.nc == nil || !s.nc.IsConnected() {
		return async.Rejected[capability.Done](capability.ErrSurfaceUnavailable)
	}

	w, h := img.Bounds()
	req := Request{
		Label:  label,
		Format: img.Format,
		Width:  w,
		Height: h,
		Image:  img.Data,
	}
	data, err := commsutil.EncodePayload(req)
	if err != nil {
		return async.Rejected[capability.Done](fmt.Errorf("%s - encode sheet: %w", logPrefix, err))
	}

	inbox := comms.NewInbox()
	replies := make(chan *comms.Msg, 1)
	sub, err := s.nc.ChanSubscribe(inbox, replies)
	if err != nil {
		return async.Rejected[capability.Done](fmt.Errorf("%s - subscribe inbox: %w", logPrefix, err))
	}
	if err := sub.AutoUnsubscribe(1); err != nil {
		_ = sub.Unsubscribe()
		return async.Rejected[capability.Done](fmt.Errorf("%s - arm inbox: %w", logPrefix, err))
	}
	if err := s.nc.PublishRequest(s.subject, inbox, data); err != nil {
		_ = sub.Unsubscribe()
		return async.Rejected[capability.Done](fmt.Errorf("%s - publish sheet: %w", logPrefix, err))
	}
	slog.Debug(fmt.Sprintf("%s - sheet requested on %s label=%q", logPrefix, s.subject, label))

	return async.Go(func() (capability.Done, error) {
		defer sub.Unsubscribe()
		select {
		case msg := <-replies:
			return decodeReply(msg)
		case <-ctx.Done():
			return capability.Done{}, ctx.Err()
		}
	})
}

func decodeReply(msg *comms.Msg) (capability.Done, error) {
	// A status-only reply with no payload means nobody was subscribed.
	if len(msg.Data) == 0 && msg.Header.Get("Status") == "503" {
		return capability.Done{}, capability.ErrSurfaceUnavailable
	}
	var reply Reply
	if err := commsutil.DecodePayload(msg.Data, &reply); err != nil {
		return capability.Done{}, fmt.Errorf("%s - decode reply: %w", logPrefix, err)
	}
	if !reply.Presented {
		if reply.Reason != "" {
			slog.Info(fmt.Sprintf("%s - sheet not presented: %s", logPrefix, reply.Reason))
		}
		return capability.Done{}, capability.ErrSurfaceUnavailable
	}
	return capability.Done{}, nil
}
