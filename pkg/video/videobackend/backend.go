package videobackend

import (
	"context"
	"errors"

	"github.com/tauraamui/vcamd/pkg/video/videoframe"
)

const (
	KindOpenCV = "opencv"
	KindMock   = "mock"
)

var (
	ErrDeviceClosed      = errors.New("capture device is not open")
	ErrUnsupportedFormat = errors.New("capture device only produces RGB24 frames")
	ErrShortBuffer       = errors.New("destination buffer does not match capture geometry")
)

// Device is a source of interleaved RGB frames at a fixed geometry.
// Read blocks until the next frame is available and fills dst, which
// is always exactly geometry.SizeImage bytes.
type Device interface {
	Open(ctx context.Context, g videoframe.Geometry, fps int) error
	Read(dst []byte) error
	Close() error
}

// Kinds lists the backend names accepted by configuration.
func Kinds() []string {
	return []string{KindOpenCV, KindMock}
}

// CheckOpenArgs validates the arguments every Device.Open receives.
func CheckOpenArgs(g videoframe.Geometry, fps int) error {
	if g.PixelFormat != videoframe.PixelFormatRGB24 {
		return ErrUnsupportedFormat
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if fps <= 0 {
		return errors.New("capture fps must be positive")
	}
	return nil
}
