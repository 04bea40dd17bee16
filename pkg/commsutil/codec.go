package commsutil

import (
	"context"
	"encoding/json"
	"fmt"

	comms "github.com/nats-io/nats.go"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// RespondJSON encodes v and sends it as the reply to msg.
func RespondJSON(msg *comms.Msg, v interface{}) error {
	data, err := EncodePayload(v)
	if err != nil {
		return fmt.Errorf("commsutil:codec - encode reply: %w", err)
	}
	return msg.Respond(data)
}

// RequestJSON sends req on subject and decodes the single reply into resp.
// The wait is bounded only by ctx.
func RequestJSON(ctx context.Context, nc *comms.Conn, subject string, req, resp interface{}) error {
	data, err := EncodePayload(req)
	if err != nil {
		return fmt.Errorf("commsutil:codec - encode request: %w", err)
	}
	msg, err := nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		return err
	}
	if err := DecodePayload(msg.Data, resp); err != nil {
		return fmt.Errorf("commsutil:codec - decode reply from %s: %w", subject, err)
	}
	return nil
}
