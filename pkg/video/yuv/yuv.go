// Package yuv converts interleaved RGB frames into planar YUV 4:2:0
// (I420) using BT.601 studio swing coefficients.
package yuv

import (
	"errors"
	"fmt"

	"github.com/tauraamui/vcamd/pkg/video/videoframe"
)

var ErrSizeMismatch = errors.New("buffer size does not match geometry")

// Converter adapts RGBToI420 to lent frames.
type Converter struct{}

// Convert writes the I420 encoding of f into dst.
func (Converter) Convert(dst []byte, f *videoframe.Frame) error {
	return RGBToI420(dst, f.Pix(), f.Width(), f.Height())
}

// RGBToI420 converts src (w*h*3 bytes, R,G,B interleaved) into dst
// (w*h*3/2 bytes: Y plane, then U, then V). Each chroma sample is the
// rounded mean of its 2x2 block.
func RGBToI420(dst, src []byte, w, h int) error {
	if w <= 0 || h <= 0 || w%2 != 0 || h%2 != 0 {
		return fmt.Errorf("%w: %dx%d is not a 4:2:0 geometry", ErrSizeMismatch, w, h)
	}
	if len(src) != videoframe.RGBSize(w, h) {
		return fmt.Errorf("%w: rgb input is %d bytes, expected %d", ErrSizeMismatch, len(src), videoframe.RGBSize(w, h))
	}
	if len(dst) != videoframe.I420Size(w, h) {
		return fmt.Errorf("%w: i420 output is %d bytes, expected %d", ErrSizeMismatch, len(dst), videoframe.I420Size(w, h))
	}

	lumaSize := w * h
	cw := w / 2
	yPlane := dst[:lumaSize]
	uPlane := dst[lumaSize : lumaSize+lumaSize/4]
	vPlane := dst[lumaSize+lumaSize/4:]

	for y := 0; y < h; y += 2 {
		row0 := src[y*w*3 : (y+1)*w*3]
		row1 := src[(y+1)*w*3 : (y+2)*w*3]
		for x := 0; x < w; x += 2 {
			var us, vs int32
			for _, px := range [4]struct {
				row  []byte
				x, y int
			}{
				{row0, x, y}, {row0, x + 1, y},
				{row1, x, y + 1}, {row1, x + 1, y + 1},
			} {
				i := px.x * 3
				r, g, b := int32(px.row[i]), int32(px.row[i+1]), int32(px.row[i+2])
				yPlane[px.y*w+px.x] = luma(r, g, b)
				us += chromaU(r, g, b)
				vs += chromaV(r, g, b)
			}
			ci := (y/2)*cw + x/2
			uPlane[ci] = clamp((us + 2*256) >> 10)
			vPlane[ci] = clamp((vs + 2*256) >> 10)
		}
	}
	return nil
}

// BT.601 8-bit integer form, Y = ((66R + 129G + 25B + 128) >> 8) + 16.
// The chroma helpers return U and V scaled by 256 so four samples can be
// summed before rounding.
func luma(r, g, b int32) byte {
	return clamp(((66*r + 129*g + 25*b + 128) >> 8) + 16)
}

func chromaU(r, g, b int32) int32 {
	return -38*r - 74*g + 112*b + 128*256
}

func chromaV(r, g, b int32) int32 {
	return 112*r - 94*g - 18*b + 128*256
}

func clamp(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}
