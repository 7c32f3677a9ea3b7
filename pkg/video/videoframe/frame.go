package videoframe

import (
	"errors"
	"fmt"
)

// PixelFormat is a V4L2 style fourcc.
type PixelFormat uint32

const (
	// PixelFormatRGB24 is interleaved 8-bit R,G,B ('RGB3').
	PixelFormatRGB24 PixelFormat = 0x33424752
	// PixelFormatYUV420 is planar Y, U, V with 4:2:0 subsampling ('YU12').
	PixelFormatYUV420 PixelFormat = 0x32315559
)

func (p PixelFormat) String() string {
	return string([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
}

var ErrInvalidGeometry = errors.New("invalid frame geometry")

// Geometry describes the buffer layout of a frame. It is fixed for
// the lifetime of a pipeline run.
type Geometry struct {
	Width        int
	Height       int
	PixelFormat  PixelFormat
	BytesPerLine int
	SizeImage    int
}

// NewRGBGeometry returns the capture side geometry, 3 bytes per pixel.
func NewRGBGeometry(w, h int) (Geometry, error) {
	if err := checkDimensions(w, h); err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Width: w, Height: h,
		PixelFormat:  PixelFormatRGB24,
		BytesPerLine: w * 3,
		SizeImage:    w * h * 3,
	}, nil
}

// NewI420Geometry returns the sink side geometry for planar 4:2:0.
// BytesPerLine is the luma stride.
func NewI420Geometry(w, h int) (Geometry, error) {
	if err := checkDimensions(w, h); err != nil {
		return Geometry{}, err
	}
	return Geometry{
		Width: w, Height: h,
		PixelFormat:  PixelFormatYUV420,
		BytesPerLine: w,
		SizeImage:    I420Size(w, h),
	}, nil
}

// I420Size is the byte size of a planar 4:2:0 frame.
func I420Size(w, h int) int {
	return w * h * 3 / 2
}

// RGBSize is the byte size of an interleaved RGB frame.
func RGBSize(w, h int) int {
	return w * h * 3
}

func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d must be positive", ErrInvalidGeometry, w, h)
	}
	if w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: %dx%d must be even for 4:2:0 subsampling", ErrInvalidGeometry, w, h)
	}
	return nil
}

// Validate reports whether the geometry is internally consistent.
func (g Geometry) Validate() error {
	if err := checkDimensions(g.Width, g.Height); err != nil {
		return err
	}
	var want int
	switch g.PixelFormat {
	case PixelFormatRGB24:
		want = RGBSize(g.Width, g.Height)
	case PixelFormatYUV420:
		want = I420Size(g.Width, g.Height)
	default:
		return fmt.Errorf("%w: unsupported pixel format %s", ErrInvalidGeometry, g.PixelFormat)
	}
	if g.SizeImage != want {
		return fmt.Errorf("%w: size image %d, expected %d", ErrInvalidGeometry, g.SizeImage, want)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d %s", g.Width, g.Height, g.PixelFormat)
}
