package videobackend

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const mockLabel = "VCAMD_OFFLINE_STREAM"

// Mock returns a Device which renders a static test card, paced to the
// requested frame rate.
func Mock() Device {
	return &mockDevice{}
}

type mockDevice struct {
	mu       sync.Mutex
	isOpen   bool
	ctx      context.Context
	geometry videoframe.Geometry
	interval time.Duration
	card     []byte
	last     time.Time
}

func (m *mockDevice) Open(ctx context.Context, g videoframe.Geometry, fps int) error {
	if err := CheckOpenArgs(g, fps); err != nil {
		return err
	}
	card, err := renderTestCard(g.Width, g.Height)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	m.geometry = g
	m.interval = time.Second / time.Duration(fps)
	m.card = card
	m.last = time.Time{}
	m.isOpen = true
	return nil
}

func (m *mockDevice) Read(dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isOpen {
		return ErrDeviceClosed
	}
	if len(dst) != m.geometry.SizeImage {
		return ErrShortBuffer
	}

	if !m.last.IsZero() {
		if wait := m.interval - time.Since(m.last); wait > 0 {
			select {
			case <-m.ctx.Done():
				return xerror.Errorf("mock capture interrupted: %w", m.ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	m.last = time.Now()

	copy(dst, m.card)
	return nil
}

func (m *mockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isOpen = false
	m.card = nil
	return nil
}

func renderTestCard(w, h int) ([]byte, error) {
	var hw, hh = float64(w) / 2, float64(h) / 2
	r := math.Min(hw, hh) / 3
	θ := 2 * math.Pi / 3
	cr := &circle{hw - r*math.Sin(0), hh - r*math.Cos(0), r * 1.5}
	cg := &circle{hw - r*math.Sin(θ), hh - r*math.Cos(θ), r * 1.5}
	cb := &circle{hw - r*math.Sin(-θ), hh - r*math.Cos(-θ), r * 1.5}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.SetRGBA(x, y, color.RGBA{
				cr.Brightness(float64(x), float64(y)),
				cg.Brightness(float64(x), float64(y)),
				cb.Brightness(float64(x), float64(y)),
				255,
			})
		}
	}

	if err := drawText(img, 5, h-h/12, float64(h)/16, mockLabel); err != nil {
		return nil, err
	}

	rgb := make([]byte, 0, videoframe.RGBSize(w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		rgb = append(rgb, img.Pix[i], img.Pix[i+1], img.Pix[i+2])
	}
	return rgb, nil
}

func drawText(canvas draw.Image, x, y int, size float64, text string) error {
	fontFace, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return xerror.Errorf("unable to draw text onto test card: %w", err)
	}
	fontDrawer := &font.Drawer{
		Dst: canvas,
		Src: image.White,
		Face: truetype.NewFace(fontFace, &truetype.Options{
			Size:    size,
			Hinting: font.HintingFull,
		}),
		Dot: fixed.P(x, y),
	}
	fontDrawer.DrawString(text)
	return nil
}

type circle struct {
	X, Y, R float64
}

func (c *circle) Brightness(x, y float64) uint8 {
	var dx, dy float64 = c.X - x, c.Y - y
	d := math.Sqrt(dx*dx+dy*dy) / c.R
	if d > 1 {
		return 0
	}
	return 255
}
