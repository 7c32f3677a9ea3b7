//go:build linux && (amd64 || arm64)

package loopback

import "unsafe"

// The format union holds pointers, so on 64-bit it is 8 byte aligned
// and the kernel struct carries 4 bytes of padding after type.
var (
	_ [48]byte  = [unsafe.Sizeof(v4l2PixFormat{})]byte{}
	_ [208]byte = [unsafe.Sizeof(v4l2Format{})]byte{}
)

const vidiocSFmt = 0xc0d05605

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

type v4l2Format struct {
	typ uint32
	_   [4]byte
	pix v4l2PixFormat
	_   [152]byte
}
