// Package capability defines the provider interfaces the share bridge calls
// into, and the values that cross that boundary.
package capability

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/morezero/native-share/pkg/async"
)

var (
	// ErrImageNotFound means a path does not resolve to a loadable image.
	ErrImageNotFound = errors.New("capability: image not found")
	// ErrSurfaceUnavailable means there is nothing to present on.
	ErrSurfaceUnavailable = errors.New("capability: presentation surface unavailable")
	// ErrWrongExecutionContext is returned by providers invoked off their required context.
	ErrWrongExecutionContext = errors.New("capability: invoked outside the required execution context")
)

// Image is a decoded image together with its original encoding.
type Image struct {
	Path   string
	Format string
	Data   []byte
	Img    image.Image
}

// Bounds returns the pixel width and height of the image.
func (i *Image) Bounds() (int, int) {
	if i == nil || i.Img == nil {
		return 0, 0
	}
	b := i.Img.Bounds()
	return b.Dx(), b.Dy()
}

// AuthorizationState is the photo-library permission gate.
type AuthorizationState int

const (
	Undetermined AuthorizationState = iota
	Authorized
	Denied
)

func (s AuthorizationState) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	default:
		return "undetermined"
	}
}

// ParseAuthorizationState parses the lower-case wire name of a state.
func ParseAuthorizationState(s string) (AuthorizationState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "authorized":
		return Authorized, nil
	case "denied":
		return Denied, nil
	case "undetermined", "":
		return Undetermined, nil
	default:
		return Undetermined, fmt.Errorf("capability: unknown authorization state %q", s)
	}
}

// Done is the completion value of providers that report no data.
type Done struct{}

// ImageLoader resolves a path into an in-memory image. Synchronous.
type ImageLoader interface {
	Load(path string) (*Image, error)
}

// PresentationSurface shows an image with a label. Implementations must only
// be invoked on the UI execution context; the future settles once the
// presentation has completed.
type PresentationSurface interface {
	Present(ctx context.Context, img *Image, label string) *async.Future[Done]
}

// PhotoLibraryAuthorizer requests access to the photo library, possibly
// prompting the user.
type PhotoLibraryAuthorizer interface {
	RequestAuthorization(ctx context.Context) *async.Future[AuthorizationState]
}

// PhotoLibraryWriter writes an image into the photo library.
type PhotoLibraryWriter interface {
	Write(ctx context.Context, img *Image) *async.Future[Done]
}
