// Package loopback writes planar frames to a v4l2loopback output
// device so that other applications can read them as a camera.
package loopback

import (
	"errors"
	"io"
	"sync"

	"github.com/spf13/afero"
	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var (
	ErrDeviceMissing = errors.New("loopback device does not exist")
	ErrOpenFailed    = errors.New("unable to open loopback device")
	ErrIoctlFailed   = errors.New("loopback device rejected format")
	ErrBrokenPipe    = errors.New("loopback consumer went away")
	ErrIO            = errors.New("loopback write failed")
	ErrNotConfigured = errors.New("loopback device not configured")
)

const (
	bufTypeVideoOutput = 2
	fieldNone          = 1
)

// Format is the VIDIOC_S_FMT request applied to the device.
type Format struct {
	Type         uint32
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
}

func formatFor(g videoframe.Geometry) Format {
	return Format{
		Type:         bufTypeVideoOutput,
		Width:        uint32(g.Width),
		Height:       uint32(g.Height),
		PixelFormat:  uint32(g.PixelFormat),
		Field:        fieldNone,
		BytesPerLine: uint32(g.BytesPerLine),
		SizeImage:    uint32(g.SizeImage),
	}
}

type device interface {
	SetFormat(Format) error
	Write(p []byte) (int, error)
	Close() error
}

var fs afero.Fs = afero.NewOsFs()

var openDevice = func(path string) (device, error) {
	return openV4L2(path)
}

// Sink owns the open handle to one loopback device node.
type Sink struct {
	path   string
	log    log.Logger
	mu     sync.Mutex
	dev    device
	format Format
	size   int
}

func New(path string, logger log.Logger) *Sink {
	return &Sink{path: path, log: log.WithPrefix(logger, "loopback")}
}

func (s *Sink) Path() string { return s.path }

// Configure opens the device and applies the output format. A path
// which does not exist yields ErrDeviceMissing without touching the
// device.
func (s *Sink) Configure(g videoframe.Geometry) error {
	if g.PixelFormat != videoframe.PixelFormatYUV420 {
		return xerror.Errorf("loopback needs %s frames, got %s: %w",
			videoframe.PixelFormatYUV420, g.PixelFormat, videoframe.ErrInvalidGeometry)
	}
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return xerror.Errorf("loopback device %s is already configured", s.path)
	}

	exists, err := afero.Exists(fs, s.path)
	if err != nil {
		return xerror.Errorf("unable to stat %s: %v: %w", s.path, err, ErrOpenFailed)
	}
	if !exists {
		return xerror.Errorf("%s: %w", s.path, ErrDeviceMissing)
	}

	dev, err := openDevice(s.path)
	if err != nil {
		return err
	}

	f := formatFor(g)
	if err := dev.SetFormat(f); err != nil {
		if cerr := dev.Close(); cerr != nil {
			s.log.Warn("unable to close %s after failed format: %v", s.path, cerr)
		}
		return err
	}

	s.dev, s.format, s.size = dev, f, g.SizeImage
	s.log.Info("%s set to %dx%d %s, bytesperline %d, sizeimage %d",
		s.path, f.Width, f.Height, videoframe.PixelFormat(f.PixelFormat), f.BytesPerLine, f.SizeImage)
	return nil
}

// Format returns the format last applied by Configure.
func (s *Sink) Format() Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Write sends one whole frame to the device.
func (s *Sink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrNotConfigured
	}
	if len(p) != s.size {
		return xerror.Errorf("frame is %d bytes, device expects %d: %w", len(p), s.size, ErrIO)
	}

	for written := 0; written < len(p); {
		n, err := s.dev.Write(p[written:])
		written += n
		if err != nil {
			return xerror.Errorf("write to %s stopped at %d of %d bytes: %w", s.path, written, len(p), err)
		}
		if n == 0 {
			return xerror.Errorf("write to %s: %v: %w", s.path, io.ErrShortWrite, ErrIO)
		}
	}
	return nil
}

// Close releases the device handle. Closing a sink which is already
// closed or was never configured does nothing.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	dev := s.dev
	s.dev = nil
	if err := dev.Close(); err != nil {
		return xerror.Errorf("unable to close %s: %w", s.path, err)
	}
	s.log.Debug("closed %s", s.path)
	return nil
}
