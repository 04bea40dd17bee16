package gallery

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/events"
)

const writerTestPrefix = "gallery:writer_test"

type failingStore struct{ err error }

func (f failingStore) Backend() string { return "failing" }
func (f failingStore) Put(context.Context, AssetRecord, []byte) (AssetRecord, error) {
	return AssetRecord{}, f.err
}
func (f failingStore) List(context.Context, int) ([]AssetRecord, int, error) { return nil, 0, nil }

type panickingStore struct{ failingStore }

func (panickingStore) Put(context.Context, AssetRecord, []byte) (AssetRecord, error) {
	panic("asset store exploded")
}

func pngImage() *capability.Image {
	return &capability.Image{
		Path:   "/photos/sunset.png",
		Format: "png",
		Data:   []byte("not really a png"),
		Img:    image.NewRGBA(image.Rect(0, 0, 8, 6)),
	}
}

func write(t *testing.T, w *Writer, img *capability.Image) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := w.Write(ctx, img).Await(ctx)
	return err
}

func TestWriter_StoresAndPublishes(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	if err != nil {
		t.Fatalf("%s - NewDirStore: %v", writerTestPrefix, err)
	}
	var got *events.AssetSavedEvent
	pub := events.PublisherFunc(func(_ context.Context, e *events.AssetSavedEvent) error {
		got = e
		return nil
	})

	if err := write(t, NewWriter(store, pub), pngImage()); err != nil {
		t.Fatalf("%s - Write: %v", writerTestPrefix, err)
	}

	if got == nil {
		t.Fatalf("%s - no saved event published", writerTestPrefix)
	}
	if got.Backend != "dir" || got.Format != "png" || got.Width != 8 || got.Height != 6 {
		t.Errorf("%s - event = %+v", writerTestPrefix, got)
	}
	if got.SHA256 == "" || got.ByteSize != int64(len("not really a png")) {
		t.Errorf("%s - event digest/size = %q/%d", writerTestPrefix, got.SHA256, got.ByteSize)
	}

	data, err := os.ReadFile(filepath.Join(store.Root(), got.AssetID+".png"))
	if err != nil {
		t.Fatalf("%s - asset file: %v", writerTestPrefix, err)
	}
	if string(data) != "not really a png" {
		t.Errorf("%s - stored bytes differ", writerTestPrefix)
	}
}

func TestWriter_StoreFailurePassesMessageThrough(t *testing.T) {
	w := NewWriter(failingStore{err: errors.New("disk full")}, nil)

	err := write(t, w, pngImage())
	if err == nil || err.Error() != "disk full" {
		t.Errorf("%s - err = %v, want disk full", writerTestPrefix, err)
	}
}

func TestWriter_PublishFailureIgnored(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())
	pub := events.PublisherFunc(func(context.Context, *events.AssetSavedEvent) error {
		return errors.New("bus down")
	})

	if err := write(t, NewWriter(store, pub), pngImage()); err != nil {
		t.Errorf("%s - Write should succeed when publishing fails: %v", writerTestPrefix, err)
	}
}

func TestWriter_NoData(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())
	err := write(t, NewWriter(store, nil), &capability.Image{Path: "/x"})
	if !errors.Is(err, ErrNoImageData) {
		t.Errorf("%s - err = %v, want ErrNoImageData", writerTestPrefix, err)
	}
}

func TestWriter_CancelledContext(t *testing.T) {
	store, _ := NewDirStore(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewWriter(store, nil).Write(ctx, pngImage()).Await(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("%s - err = %v, want context.Canceled", writerTestPrefix, err)
	}
	recs, total, _ := store.List(context.Background(), 0)
	if total != 0 || len(recs) != 0 {
		t.Errorf("%s - nothing should be stored after cancel", writerTestPrefix)
	}
}

func TestWriter_StorePanicRejects(t *testing.T) {
	err := write(t, NewWriter(panickingStore{}, nil), pngImage())

	var pe *async.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("%s - err = %v, want *async.PanicError", writerTestPrefix, err)
	}
	if pe.Value != "asset store exploded" {
		t.Errorf("%s - panic value = %v", writerTestPrefix, pe.Value)
	}
}
