package gallery

import (
	"context"
	"fmt"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/commsutil"
)

// PermissionRequest is sent to the UI host on the permission subject.
type PermissionRequest struct {
	Scope string `json:"scope"`
}

// PermissionReply is the UI host's decision.
type PermissionReply struct {
	State string `json:"state"`
}

// CommsPrompter asks a UI host for permission over COMMS request/reply.
type CommsPrompter struct {
	nc      *comms.Conn
	subject string
}

// NewCommsPrompter creates a prompter on subject (commsutil.SubjectPermission if empty).
func NewCommsPrompter(nc *comms.Conn, subject string) *CommsPrompter {
	if subject == "" {
		subject = commsutil.SubjectPermission
	}
	return &CommsPrompter{nc: nc, subject: subject}
}

// Prompt blocks until the host answers or ctx ends.
func (p *CommsPrompter) Prompt(ctx context.Context, scope string) (capability.AuthorizationState, error) {
	var reply PermissionReply
	if err := commsutil.RequestJSON(ctx, p.nc, p.subject, PermissionRequest{Scope: scope}, &reply); err != nil {
		return capability.Undetermined, fmt.Errorf("%s - permission request: %w", authLogPrefix, err)
	}
	return capability.ParseAuthorizationState(reply.State)
}
