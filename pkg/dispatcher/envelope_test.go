package dispatcher

import (
	"encoding/json"
	"testing"
)

func TestCallEnvelope_Unmarshal(t *testing.T) {
	raw := `{
		"id": "req-1",
		"method": "shareImage",
		"arguments": {"imagePath": "/tmp/a.png", "subject": "Hi"},
		"ctx": {"caller": "flutter-app", "requestId": "abc"}
	}`

	var env CallEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if env.ID != "req-1" {
		t.Errorf("expected id req-1, got %s", env.ID)
	}
	if env.Method != MethodShareImage {
		t.Errorf("expected method shareImage, got %s", env.Method)
	}
	if env.Ctx == nil || env.Ctx.Caller != "flutter-app" {
		t.Fatalf("expected ctx caller flutter-app, got %+v", env.Ctx)
	}
	if caller(&env) != "flutter-app" {
		t.Errorf("expected caller flutter-app, got %s", caller(&env))
	}

	req, err := Validate(env.Method, env.Arguments)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.(ShareImageRequest).Subject != "Hi" {
		t.Errorf("expected subject Hi, got %+v", req)
	}
}

func TestCaller_Default(t *testing.T) {
	if got := caller(&CallEnvelope{}); got != "anonymous" {
		t.Errorf("expected anonymous, got %s", got)
	}
	if got := caller(&CallEnvelope{Ctx: &InvocationContext{}}); got != "anonymous" {
		t.Errorf("expected anonymous for empty caller, got %s", got)
	}
}

func TestCallResult_Response(t *testing.T) {
	tests := []struct {
		name string
		res  CallResult
		want string
	}{
		{"success", Success(true), `{"id":"x","ok":true,"result":true}`},
		{"failure", Failure(CodePermissionDenied, "Photo library permission denied"),
			`{"id":"x","ok":false,"error":{"code":"PERMISSION_DENIED","message":"Photo library permission denied"}}`},
		{"not implemented", NotImplemented(), `{"id":"x","ok":false,"notImplemented":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res.Response("x"))
			if err != nil {
				t.Fatalf("failed to marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestCallResult_Outcome(t *testing.T) {
	if Success(1).Outcome() != "success" {
		t.Error("expected success outcome")
	}
	if NotImplemented().Outcome() != "not_implemented" {
		t.Error("expected not_implemented outcome")
	}
	if Failure(CodeResourceNotFound, "").Outcome() != "IMAGE_NOT_FOUND" {
		t.Error("expected code as outcome")
	}
}
