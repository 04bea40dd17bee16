package commsutil

import (
	"context"
	"errors"
	"testing"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/internal/commstest"
)

const codecTestPrefix = "commsutil:codec_test"

type sheetPayload struct {
	Label string `json:"label"`
	Image []byte `json:"image"`
}

func TestEncodeDecode_BytesAsBase64(t *testing.T) {
	data, err := EncodePayload(sheetPayload{Label: "x", Image: []byte{0xff, 0x00}})
	if err != nil {
		t.Fatalf("%s - encode: %v", codecTestPrefix, err)
	}
	if string(data) != `{"label":"x","image":"/wA="}` {
		t.Errorf("%s - encoded = %s", codecTestPrefix, data)
	}

	var got sheetPayload
	if err := DecodePayload(data, &got); err != nil {
		t.Fatalf("%s - decode: %v", codecTestPrefix, err)
	}
	if len(got.Image) != 2 || got.Image[0] != 0xff {
		t.Errorf("%s - decoded image = %v", codecTestPrefix, got.Image)
	}
}

func TestEncodePayload_Unserializable(t *testing.T) {
	if _, err := EncodePayload(make(chan int)); err == nil {
		t.Errorf("%s - expected error for channel value", codecTestPrefix)
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	tests := map[string]string{
		"truncated":  `{"label":`,
		"wrong type": `{"label":5}`,
		"empty":      ``,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			var p sheetPayload
			if err := DecodePayload([]byte(in), &p); err == nil {
				t.Errorf("%s - expected error for %q", codecTestPrefix, in)
			}
		})
	}
}

func TestRequestJSON_RoundTrip(t *testing.T) {
	ns, nc := commstest.StartServer(t)
	host := commstest.Connect(t, ns)

	sub, err := host.Subscribe("codec.echo", func(msg *comms.Msg) {
		var in sheetPayload
		if err := DecodePayload(msg.Data, &in); err != nil {
			t.Errorf("%s - host decode: %v", codecTestPrefix, err)
			return
		}
		in.Label = "echo:" + in.Label
		if err := RespondJSON(msg, in); err != nil {
			t.Errorf("%s - RespondJSON: %v", codecTestPrefix, err)
		}
	})
	if err != nil {
		t.Fatalf("%s - subscribe: %v", codecTestPrefix, err)
	}
	defer sub.Unsubscribe()
	host.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out sheetPayload
	if err := RequestJSON(ctx, nc, "codec.echo", sheetPayload{Label: "hi"}, &out); err != nil {
		t.Fatalf("%s - RequestJSON: %v", codecTestPrefix, err)
	}
	if out.Label != "echo:hi" {
		t.Errorf("%s - label = %q, want echo:hi", codecTestPrefix, out.Label)
	}
}

func TestRequestJSON_NoResponders(t *testing.T) {
	_, nc := commstest.StartServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out sheetPayload
	err := RequestJSON(ctx, nc, "codec.nobody", sheetPayload{}, &out)
	if !errors.Is(err, comms.ErrNoResponders) {
		t.Errorf("%s - err = %v, want ErrNoResponders", codecTestPrefix, err)
	}
}

func TestRequestJSON_CancelledWhileWaiting(t *testing.T) {
	ns, nc := commstest.StartServer(t)
	host := commstest.Connect(t, ns)

	// Subscribed but never answers.
	sub, err := host.Subscribe("codec.silent", func(*comms.Msg) {})
	if err != nil {
		t.Fatalf("%s - subscribe: %v", codecTestPrefix, err)
	}
	defer sub.Unsubscribe()
	host.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	var out sheetPayload
	if err := RequestJSON(ctx, nc, "codec.silent", sheetPayload{}, &out); !errors.Is(err, context.Canceled) {
		t.Errorf("%s - err = %v, want context.Canceled", codecTestPrefix, err)
	}
}

func TestRequestJSON_BadReply(t *testing.T) {
	ns, nc := commstest.StartServer(t)
	host := commstest.Connect(t, ns)

	sub, err := host.Subscribe("codec.garbage", func(msg *comms.Msg) { _ = msg.Respond([]byte("not json")) })
	if err != nil {
		t.Fatalf("%s - subscribe: %v", codecTestPrefix, err)
	}
	defer sub.Unsubscribe()
	host.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out sheetPayload
	if err := RequestJSON(ctx, nc, "codec.garbage", sheetPayload{}, &out); err == nil {
		t.Errorf("%s - expected decode error", codecTestPrefix)
	}
}
