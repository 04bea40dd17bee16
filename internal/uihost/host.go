// Package uihost is a headless stand-in for the UI side of the channel. It
// answers share sheet and photo permission requests over COMMS so the
// channel can run without a real display.
package uihost

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/commsutil"
	"github.com/morezero/native-share/pkg/gallery"
	"github.com/morezero/native-share/pkg/sheet"
)

const logPrefix = "uihost:host"

// Config holds ui-host settings.
type Config struct {
	COMMSURL          string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	SheetSubject      string `envconfig:"SHEET_SUBJECT" default:"native_share.ui.sheet"`
	PermissionSubject string `envconfig:"PERMISSION_SUBJECT" default:"native_share.ui.permission"`

	// Permission is the answer given to every prompt.
	Permission string `envconfig:"UI_HOST_PERMISSION" default:"authorized"`
	// Present false simulates a host with no window to present from.
	Present bool `envconfig:"UI_HOST_PRESENT" default:"true"`
	// OutboxDir, when set, receives a copy of every shared image.
	OutboxDir string `envconfig:"UI_HOST_OUTBOX"`
}

// LoadConfig loads ui-host configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if _, err := capability.ParseAuthorizationState(c.Permission); err != nil {
		return nil, fmt.Errorf("%s - UI_HOST_PERMISSION: %w", logPrefix, err)
	}
	return &c, nil
}

// SharedImage records one presented share sheet.
type SharedImage struct {
	Label  string
	Format string
	Width  int
	Height int
	Path   string
	At     time.Time
}

// Host answers sheet and permission requests.
type Host struct {
	cfg   *Config
	nc    *comms.Conn
	subs  []*comms.Subscription
	state capability.AuthorizationState

	mu      sync.Mutex
	shared  []SharedImage
	prompts int
}

// New creates a Host on nc. cfg.Permission must parse.
func New(cfg *Config, nc *comms.Conn) (*Host, error) {
	state, err := capability.ParseAuthorizationState(cfg.Permission)
	if err != nil {
		return nil, err
	}
	if cfg.OutboxDir != "" {
		if err := os.MkdirAll(cfg.OutboxDir, 0o755); err != nil {
			return nil, fmt.Errorf("%s - create outbox: %w", logPrefix, err)
		}
	}
	return &Host{cfg: cfg, nc: nc, state: state}, nil
}

// Start subscribes to the sheet and permission subjects.
func (h *Host) Start() error {
	sheetSub, err := h.nc.Subscribe(h.cfg.SheetSubject, h.handleSheet)
	if err != nil {
		return fmt.Errorf("%s - subscribe %s: %w", logPrefix, h.cfg.SheetSubject, err)
	}
	permSub, err := h.nc.Subscribe(h.cfg.PermissionSubject, h.handlePermission)
	if err != nil {
		sheetSub.Unsubscribe()
		return fmt.Errorf("%s - subscribe %s: %w", logPrefix, h.cfg.PermissionSubject, err)
	}
	h.subs = []*comms.Subscription{sheetSub, permSub}
	slog.Info(fmt.Sprintf("%s - Answering %s and %s (permission=%s present=%t)",
		logPrefix, h.cfg.SheetSubject, h.cfg.PermissionSubject, h.state, h.cfg.Present))
	return h.nc.Flush()
}

// Stop unsubscribes.
func (h *Host) Stop() {
	for _, sub := range h.subs {
		_ = sub.Unsubscribe()
	}
	h.subs = nil
}

// Shared returns the sheets presented so far.
func (h *Host) Shared() []SharedImage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]SharedImage(nil), h.shared...)
}

// Prompts returns how many permission prompts were answered.
func (h *Host) Prompts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prompts
}

func (h *Host) handleSheet(msg *comms.Msg) {
	var req sheet.Request
	if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - decode sheet request: %v", logPrefix, err))
		_ = commsutil.RespondJSON(msg, sheet.Reply{Presented: false, Reason: "malformed request"})
		return
	}
	if !h.cfg.Present {
		_ = commsutil.RespondJSON(msg, sheet.Reply{Presented: false, Reason: "no window to present from"})
		return
	}

	shared := SharedImage{Label: req.Label, Format: req.Format, Width: req.Width, Height: req.Height, At: time.Now()}
	if h.cfg.OutboxDir != "" {
		shared.Path = filepath.Join(h.cfg.OutboxDir, uuid.NewString()+"."+req.Format)
		if err := os.WriteFile(shared.Path, req.Image, 0o644); err != nil {
			slog.Error(fmt.Sprintf("%s - write outbox: %v", logPrefix, err))
			_ = commsutil.RespondJSON(msg, sheet.Reply{Presented: false, Reason: err.Error()})
			return
		}
	}
	h.mu.Lock()
	h.shared = append(h.shared, shared)
	h.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Share sheet label=%q %s %dx%d", logPrefix, req.Label, req.Format, req.Width, req.Height))
	if err := commsutil.RespondJSON(msg, sheet.Reply{Presented: true}); err != nil {
		slog.Error(fmt.Sprintf("%s - respond sheet: %v", logPrefix, err))
	}
}

func (h *Host) handlePermission(msg *comms.Msg) {
	var req gallery.PermissionRequest
	if err := commsutil.DecodePayload(msg.Data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - decode permission request: %v", logPrefix, err))
		return
	}
	h.mu.Lock()
	h.prompts++
	h.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Permission prompt scope=%s answer=%s", logPrefix, req.Scope, h.state))
	if err := commsutil.RespondJSON(msg, gallery.PermissionReply{State: h.state.String()}); err != nil {
		slog.Error(fmt.Sprintf("%s - respond permission: %v", logPrefix, err))
	}
}
