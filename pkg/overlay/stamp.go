// Package overlay stamps text onto lent RGB frames in place.
package overlay

import (
	"image"
	"image/color"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"
)

// TimestampLayout is the wall clock format stamped onto every frame.
const TimestampLayout = "2006-01-02 15:04:05"

const (
	// baseline origin of the first glyph
	anchorX, anchorY = 10, 30
	// roughly a scale 1 simplex stroke at weight 2
	fontSize = 30.0
)

var green = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Stamper draws a text label at a fixed anchor. It keeps its glyph
// cache between frames and is not safe for concurrent use.
type Stamper struct {
	canvas rgbCanvas
	drawer font.Drawer
	anchor fixed.Point26_6
}

// NewTimestampStamper returns a Stamper which draws bold sans serif
// text in full intensity green with its baseline at (10,30).
func NewTimestampStamper() (*Stamper, error) {
	ttf, err := freetype.ParseFont(gobold.TTF)
	if err != nil {
		return nil, xerror.Errorf("unable to parse overlay font: %w", err)
	}
	s := Stamper{
		anchor: fixed.P(anchorX, anchorY),
	}
	s.drawer = font.Drawer{
		Src: image.NewUniform(green),
		Face: truetype.NewFace(ttf, &truetype.Options{
			Size:    fontSize,
			Hinting: font.HintingFull,
		}),
	}
	return &s, nil
}

// Stamp draws text onto f. Glyphs falling outside the frame are clipped.
func (s *Stamper) Stamp(f *videoframe.Frame, text string) {
	if !f.Valid() || len(text) == 0 {
		return
	}
	s.canvas = rgbCanvas{pix: f.Pix(), w: f.Width(), h: f.Height()}
	defer func() { s.canvas = rgbCanvas{} }()

	s.drawer.Dst = &s.canvas
	s.drawer.Dot = s.anchor
	s.drawer.DrawString(text)
	s.drawer.Dst = nil
}

// rgbCanvas exposes an interleaved RGB buffer as a draw.Image.
type rgbCanvas struct {
	pix  []byte
	w, h int
}

func (c *rgbCanvas) ColorModel() color.Model { return color.RGBAModel }

func (c *rgbCanvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.w, c.h) }

func (c *rgbCanvas) offset(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return 0, false
	}
	i := (y*c.w + x) * 3
	if i+2 >= len(c.pix) {
		return 0, false
	}
	return i, true
}

func (c *rgbCanvas) At(x, y int) color.Color {
	i, ok := c.offset(x, y)
	if !ok {
		return color.RGBA{}
	}
	return color.RGBA{R: c.pix[i], G: c.pix[i+1], B: c.pix[i+2], A: 255}
}

func (c *rgbCanvas) Set(x, y int, col color.Color) {
	i, ok := c.offset(x, y)
	if !ok {
		return
	}
	rgba := color.RGBAModel.Convert(col).(color.RGBA)
	c.pix[i], c.pix[i+1], c.pix[i+2] = rgba.R, rgba.G, rgba.B
}
