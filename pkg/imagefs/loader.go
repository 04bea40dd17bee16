// Package imagefs loads images from the local filesystem.
package imagefs

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/morezero/native-share/pkg/capability"
)

const logPrefix = "imagefs:loader"

// DefaultMaxBytes caps the size of files the loader will read.
const DefaultMaxBytes = 64 << 20

// Loader implements capability.ImageLoader for files on disk.
type Loader struct {
	maxBytes int64
}

// NewLoader creates a Loader. maxBytes <= 0 uses DefaultMaxBytes.
func NewLoader(maxBytes int64) *Loader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Loader{maxBytes: maxBytes}
}

// Load reads and decodes the image at path. Any failure is reported as
// capability.ErrImageNotFound wrapped with the cause.
func (l *Loader) Load(path string) (*capability.Image, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", capability.ErrImageNotFound, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", capability.ErrImageNotFound, path)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", capability.ErrImageNotFound, path, l.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", capability.ErrImageNotFound, path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - decode %s failed: %v", logPrefix, path, err))
		return nil, fmt.Errorf("%w: %s: %v", capability.ErrImageNotFound, path, err)
	}

	return &capability.Image{
		Path:   path,
		Format: format,
		Data:   data,
		Img:    img,
	}, nil
}
