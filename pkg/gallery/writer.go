package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/native-share/pkg/async"
	"github.com/morezero/native-share/pkg/capability"
	"github.com/morezero/native-share/pkg/events"
)

const writerLogPrefix = "gallery:writer"

// ErrNoImageData is returned when an image carries no encoded bytes.
var ErrNoImageData = errors.New("image has no data")

// AssetRecord describes a stored gallery asset.
type AssetRecord struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"sourcePath"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ByteSize   int64     `json:"byteSize"`
	SHA256     string    `json:"sha256"`
	Created    time.Time `json:"created"`
}

// AssetStore persists image bytes with their metadata.
type AssetStore interface {
	Backend() string
	// Put stores data and returns the record with ID and Created filled in.
	Put(ctx context.Context, rec AssetRecord, data []byte) (AssetRecord, error)
	// List returns up to limit records, newest first, and the total count.
	List(ctx context.Context, limit int) ([]AssetRecord, int, error)
}

// Writer implements capability.PhotoLibraryWriter.
type Writer struct {
	store     AssetStore
	publisher events.EventPublisher
}

// NewWriter creates a Writer. publisher may be nil.
func NewWriter(store AssetStore, publisher events.EventPublisher) *Writer {
	if publisher == nil {
		publisher = events.Discard
	}
	return &Writer{store: store, publisher: publisher}
}

// Write stores the image's original encoding.
func (w *Writer) Write(ctx context.Context, img *capability.Image) *async.Future[capability.Done] {
	return async.Go(func() (capability.Done, error) {
		return capability.Done{}, w.write(ctx, img)
	})
}

func (w *Writer) write(ctx context.Context, img *capability.Image) error {
	if img == nil || len(img.Data) == 0 {
		return ErrNoImageData
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sum := sha256.Sum256(img.Data)
	width, height := img.Bounds()
	rec, err := w.store.Put(ctx, AssetRecord{
		SourcePath: img.Path,
		Format:     img.Format,
		Width:      width,
		Height:     height,
		ByteSize:   int64(len(img.Data)),
		SHA256:     hex.EncodeToString(sum[:]),
	}, img.Data)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s store failed for %s: %v", writerLogPrefix, w.store.Backend(), img.Path, err))
		return err
	}
	slog.Info(fmt.Sprintf("%s - saved %s as asset %s (%d bytes)", writerLogPrefix, img.Path, rec.ID, rec.ByteSize))

	event := &events.AssetSavedEvent{
		AssetID:    rec.ID,
		SourcePath: rec.SourcePath,
		Format:     rec.Format,
		Width:      rec.Width,
		Height:     rec.Height,
		ByteSize:   rec.ByteSize,
		SHA256:     rec.SHA256,
		Backend:    w.store.Backend(),
		Timestamp:  rec.Created.UTC().Format(time.RFC3339),
	}
	// The asset is already stored; a lost event does not fail the write.
	if err := w.publisher.PublishSaved(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - saved event for %s not published: %v", writerLogPrefix, rec.ID, err))
	}
	return nil
}
