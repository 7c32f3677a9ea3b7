//go:build linux && (amd64 || arm64 || arm)

package loopback

import (
	"errors"
	"unsafe"

	"github.com/tauraamui/xerror"
	"golang.org/x/sys/unix"
)

type v4l2Device struct {
	fd int
}

func openV4L2(path string) (device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, xerror.Errorf("%s: %w", path, ErrDeviceMissing)
		}
		return nil, xerror.Errorf("%s: %v: %w", path, err, ErrOpenFailed)
	}
	return &v4l2Device{fd: fd}, nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *v4l2Device) SetFormat(f Format) error {
	var vf v4l2Format
	vf.typ = f.Type
	vf.pix = v4l2PixFormat{
		width:        f.Width,
		height:       f.Height,
		pixelformat:  f.PixelFormat,
		field:        f.Field,
		bytesperline: f.BytesPerLine,
		sizeimage:    f.SizeImage,
	}
	if err := ioctl(d.fd, vidiocSFmt, unsafe.Pointer(&vf)); err != nil {
		return xerror.Errorf("VIDIOC_S_FMT: %v: %w", err, ErrIoctlFailed)
	}
	return nil
}

func (d *v4l2Device) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(d.fd, p)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n < 0 {
			n = 0
		}
		if err != nil {
			return n, classifyWriteErr(err)
		}
		return n, nil
	}
}

func classifyWriteErr(err error) error {
	if errors.Is(err, unix.EPIPE) {
		return xerror.Errorf("%v: %w", err, ErrBrokenPipe)
	}
	return xerror.Errorf("%v: %w", err, ErrIO)
}

func (d *v4l2Device) Close() error {
	return unix.Close(d.fd)
}
