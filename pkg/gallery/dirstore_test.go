package gallery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morezero/native-share/pkg/capability"
)

const dirTestPrefix = "gallery:dirstore_test"

func TestDirStore_PutAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewDirStore(filepath.Join(t.TempDir(), "nested", "gallery"))
	if err != nil {
		t.Fatalf("%s - NewDirStore: %v", dirTestPrefix, err)
	}

	first, err := store.Put(ctx, AssetRecord{SourcePath: "/a.jpg", Format: "jpeg"}, []byte("a"))
	if err != nil {
		t.Fatalf("%s - Put: %v", dirTestPrefix, err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := store.Put(ctx, AssetRecord{SourcePath: "/b.gif", Format: "gif"}, []byte("bb"))
	if err != nil {
		t.Fatalf("%s - Put: %v", dirTestPrefix, err)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("%s - ids %q/%q must be unique", dirTestPrefix, first.ID, second.ID)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), first.ID+".jpg")); err != nil {
		t.Errorf("%s - jpeg asset missing: %v", dirTestPrefix, err)
	}

	recs, total, err := store.List(ctx, 1)
	if err != nil {
		t.Fatalf("%s - List: %v", dirTestPrefix, err)
	}
	if total != 2 || len(recs) != 1 {
		t.Fatalf("%s - total=%d len=%d, want 2/1", dirTestPrefix, total, len(recs))
	}
	if recs[0].ID != second.ID {
		t.Errorf("%s - newest first: got %s, want %s", dirTestPrefix, recs[0].ID, second.ID)
	}
}

func TestDirStore_AuthorizationState(t *testing.T) {
	ctx := context.Background()
	store, _ := NewDirStore(t.TempDir())

	if _, ok, err := store.LoadState(ctx, ScopeAddOnly); err != nil || ok {
		t.Fatalf("%s - fresh store: ok=%v err=%v", dirTestPrefix, ok, err)
	}
	if err := store.SaveState(ctx, ScopeAddOnly, capability.Denied); err != nil {
		t.Fatalf("%s - SaveState: %v", dirTestPrefix, err)
	}

	reopened, _ := NewDirStore(store.Root())
	state, ok, err := reopened.LoadState(ctx, ScopeAddOnly)
	if err != nil || !ok || state != capability.Denied {
		t.Errorf("%s - reloaded state = %s ok=%v err=%v", dirTestPrefix, state, ok, err)
	}
}

func TestDirStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _ := NewDirStore(t.TempDir())
	_, _ = store.Put(ctx, AssetRecord{Format: "png"}, []byte("x"))
	_ = store.SaveState(ctx, ScopeAddOnly, capability.Authorized)

	if err := store.Clear(); err != nil {
		t.Fatalf("%s - Clear: %v", dirTestPrefix, err)
	}
	if _, total, _ := store.List(ctx, 0); total != 0 {
		t.Errorf("%s - %d assets left after Clear", dirTestPrefix, total)
	}
	if _, ok, _ := store.LoadState(ctx, ScopeAddOnly); ok {
		t.Errorf("%s - authorization left after Clear", dirTestPrefix)
	}
}

func TestExtension(t *testing.T) {
	tests := map[string]string{"png": ".png", "jpeg": ".jpg", "JPG": ".jpg", "gif": ".gif", "": ".img"}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("%s - extension(%q) = %q, want %q", dirTestPrefix, in, got, want)
		}
	}
}
