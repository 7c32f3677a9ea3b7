// Package opencv reads frames from a physical camera through gocv.
package opencv

import (
	"context"
	"image"
	"sync"

	"github.com/tauraamui/vcamd/pkg/video/videobackend"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
	"gocv.io/x/gocv"
)

type device struct {
	cameraID int
	mu       sync.Mutex
	isOpen   bool
	geometry videoframe.Geometry
	vc       *gocv.VideoCapture
	raw      gocv.Mat
	rgb      gocv.Mat
	scaled   gocv.Mat
}

// New returns a Device for the camera with the given index.
func New(cameraID int) videobackend.Device {
	return &device{cameraID: cameraID}
}

func (d *device) Open(ctx context.Context, g videoframe.Geometry, fps int) error {
	if err := videobackend.CheckOpenArgs(g, fps); err != nil {
		return err
	}

	vc, err := connect(ctx, d.cameraID)
	if err != nil {
		return err
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(g.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(g.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(fps))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.vc = vc
	d.geometry = g
	d.raw = gocv.NewMat()
	d.rgb = gocv.NewMat()
	d.scaled = gocv.NewMat()
	d.isOpen = true
	return nil
}

type openVideoCaptureResult struct {
	vc  *gocv.VideoCapture
	err error
}

func connect(ctx context.Context, cameraID int) (*gocv.VideoCapture, error) {
	result := make(chan openVideoCaptureResult, 1)
	go func() {
		vc, err := openVideoCapture(cameraID)
		result <- openVideoCaptureResult{vc: vc, err: err}
	}()
	select {
	case r := <-result:
		if r.err != nil {
			return nil, xerror.Errorf("unable to open camera %d: %w", cameraID, r.err)
		}
		return r.vc, nil
	case <-ctx.Done():
		return nil, xerror.Errorf("opening camera %d cancelled: %w", cameraID, ctx.Err())
	}
}

var openVideoCapture = func(cameraID int) (*gocv.VideoCapture, error) {
	return gocv.OpenVideoCapture(cameraID)
}

var readFromVideoCapture = func(vc *gocv.VideoCapture, mat *gocv.Mat) bool {
	if vc.IsOpened() {
		return vc.Read(mat)
	}
	return false
}

func (d *device) Read(dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isOpen {
		return videobackend.ErrDeviceClosed
	}
	if len(dst) != d.geometry.SizeImage {
		return videobackend.ErrShortBuffer
	}

	if ok := readFromVideoCapture(d.vc, &d.raw); !ok || d.raw.Empty() {
		return xerror.Errorf("unable to read frame from camera %d", d.cameraID)
	}

	gocv.CvtColor(d.raw, &d.rgb, gocv.ColorBGRToRGB)
	out := d.rgb
	if out.Cols() != d.geometry.Width || out.Rows() != d.geometry.Height {
		gocv.Resize(d.rgb, &d.scaled, image.Pt(d.geometry.Width, d.geometry.Height), 0, 0, gocv.InterpolationLinear)
		out = d.scaled
	}

	if n := copy(dst, out.ToBytes()); n != len(dst) {
		return xerror.Errorf("camera %d produced %d bytes, expected %d", d.cameraID, n, len(dst))
	}
	return nil
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.isOpen {
		return nil
	}
	d.isOpen = false
	d.raw.Close()
	d.rgb.Close()
	d.scaled.Close()
	return d.vc.Close()
}
