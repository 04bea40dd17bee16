package capability

import (
	"image"
	"testing"
)

func TestParseAuthorizationState(t *testing.T) {
	tests := []struct {
		in      string
		want    AuthorizationState
		wantErr bool
	}{
		{"authorized", Authorized, false},
		{"Denied", Denied, false},
		{" undetermined ", Undetermined, false},
		{"", Undetermined, false},
		{"limited", Undetermined, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAuthorizationState(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("capability:capability_test - err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("capability:capability_test - got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthorizationState_StringRoundTrip(t *testing.T) {
	for _, s := range []AuthorizationState{Authorized, Denied, Undetermined} {
		got, err := ParseAuthorizationState(s.String())
		if err != nil || got != s {
			t.Errorf("capability:capability_test - %v round trip = (%v, %v)", s, got, err)
		}
	}
}

func TestImage_Bounds(t *testing.T) {
	img := &Image{Img: image.NewRGBA(image.Rect(0, 0, 4, 3))}
	w, h := img.Bounds()
	if w != 4 || h != 3 {
		t.Errorf("capability:capability_test - bounds = %dx%d, want 4x3", w, h)
	}

	var nilImg *Image
	if w, h := nilImg.Bounds(); w != 0 || h != 0 {
		t.Errorf("capability:capability_test - nil bounds = %dx%d", w, h)
	}
}
