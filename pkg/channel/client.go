// Package channel is the calling side of the native share channel: it sends
// call envelopes over COMMS and decodes the single reply.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/dispatcher"
	"github.com/morezero/native-share/pkg/manifest"
)

const logPrefix = "channel:client"

// ErrIncompatible is returned by CheckCompatible when the served manifest
// does not satisfy the caller's constraint.
var ErrIncompatible = errors.New("channel: incompatible channel version")

// Client invokes channel methods.
type Client struct {
	nc       *comms.Conn
	subjects manifest.Subjects
	caller   string
}

// Option configures a Client.
type Option func(*Client)

// WithSubjects overrides the default channel and manifest subjects.
func WithSubjects(channel, manifestSubject string) Option {
	return func(c *Client) {
		if channel != "" {
			c.subjects.Channel = channel
		}
		if manifestSubject != "" {
			c.subjects.Manifest = manifestSubject
		}
	}
}

// WithCaller sets the caller name sent in each envelope's ctx.
func WithCaller(name string) Option {
	return func(c *Client) { c.caller = name }
}

// NewClient creates a channel client on nc.
func NewClient(nc *comms.Conn, opts ...Option) *Client {
	c := &Client{
		nc: nc,
		subjects: manifest.Subjects{
			Channel:  commsutil.SubjectChannel,
			Manifest: commsutil.SubjectManifest,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke sends method with args and waits for the reply. args may be nil.
// A channel-level failure is returned in the response, not as an error.
func (c *Client) Invoke(ctx context.Context, method string, args interface{}) (*dispatcher.CallResponse, error) {
	env := &dispatcher.CallEnvelope{
		ID:     uuid.NewString(),
		Method: method,
	}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%s - encode arguments: %w", logPrefix, err)
		}
		env.Arguments = raw
	}
	if c.caller != "" {
		env.Ctx = &dispatcher.InvocationContext{Caller: c.caller, RequestID: env.ID}
	}

	var resp dispatcher.CallResponse
	if err := commsutil.RequestJSON(ctx, c.nc, c.subjects.Channel, env, &resp); err != nil {
		return nil, fmt.Errorf("%s - %s: %w", logPrefix, method, err)
	}
	if resp.ID != env.ID {
		return nil, fmt.Errorf("%s - reply id %q does not match call id %q", logPrefix, resp.ID, env.ID)
	}
	return &resp, nil
}

// ShareImage asks the host to present a share sheet for imagePath.
func (c *Client) ShareImage(ctx context.Context, imagePath, subject string) (*dispatcher.CallResponse, error) {
	args := map[string]string{"imagePath": imagePath}
	if subject != "" {
		args["subject"] = subject
	}
	return c.Invoke(ctx, dispatcher.MethodShareImage, args)
}

// SaveImageToGallery asks the host to save imagePath to the photo library.
func (c *Client) SaveImageToGallery(ctx context.Context, imagePath string) (*dispatcher.CallResponse, error) {
	return c.Invoke(ctx, dispatcher.MethodSaveImageToGallery, map[string]string{"imagePath": imagePath})
}

// Manifest fetches the channel manifest.
func (c *Client) Manifest(ctx context.Context) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := commsutil.RequestJSON(ctx, c.nc, c.subjects.Manifest, struct{}{}, &m); err != nil {
		return nil, fmt.Errorf("%s - manifest: %w", logPrefix, err)
	}
	return &m, nil
}

// CheckCompatible fetches the manifest and checks its version against
// constraint (e.g. "^1.0.0").
func (c *Client) CheckCompatible(ctx context.Context, constraint string) (*manifest.Manifest, error) {
	m, err := c.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := m.Compatible(constraint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return m, fmt.Errorf("%w: %s %s does not satisfy %s", ErrIncompatible, m.Name, m.Version, constraint)
	}
	return m, nil
}

// Err converts a failed response into an error, or nil on success.
func Err(resp *dispatcher.CallResponse) error {
	switch {
	case resp == nil:
		return fmt.Errorf("%s - no response", logPrefix)
	case resp.Ok:
		return nil
	case resp.NotImplemented:
		return fmt.Errorf("%s - method not implemented", logPrefix)
	case resp.Error != nil:
		return &CallError{Code: resp.Error.Code, Message: resp.Error.Message}
	default:
		return fmt.Errorf("%s - call failed without error detail", logPrefix)
	}
}

// CallError is a failed call's code and message.
type CallError struct {
	Code    string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
