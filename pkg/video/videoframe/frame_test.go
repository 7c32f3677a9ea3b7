package videoframe_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
)

func TestNewI420GeometryFullHD(t *testing.T) {
	is := is.New(t)
	g, err := videoframe.NewI420Geometry(1920, 1080)
	is.NoErr(err)
	is.Equal(g.SizeImage, 3110400)
	is.Equal(g.BytesPerLine, 1920)
	is.Equal(g.PixelFormat, videoframe.PixelFormatYUV420)
	is.NoErr(g.Validate())
}

func TestNewRGBGeometry(t *testing.T) {
	is := is.New(t)
	g, err := videoframe.NewRGBGeometry(640, 480)
	is.NoErr(err)
	is.Equal(g.SizeImage, 640*480*3)
	is.Equal(g.BytesPerLine, 640*3)
	is.NoErr(g.Validate())
}

func TestGeometryRejectsBadDimensions(t *testing.T) {
	for _, tt := range []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 480},
		{"negative height", 640, -2},
		{"odd width", 641, 480},
		{"odd height", 640, 479},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := videoframe.NewI420Geometry(tt.w, tt.h)
			assert.ErrorIs(t, err, videoframe.ErrInvalidGeometry)
			_, err = videoframe.NewRGBGeometry(tt.w, tt.h)
			assert.ErrorIs(t, err, videoframe.ErrInvalidGeometry)
		})
	}
}

func TestValidateCatchesWrongSizeImage(t *testing.T) {
	g, err := videoframe.NewI420Geometry(4, 4)
	require.NoError(t, err)
	g.SizeImage = 16
	assert.ErrorIs(t, g.Validate(), videoframe.ErrInvalidGeometry)
}

func TestPixelFormatString(t *testing.T) {
	is := is.New(t)
	is.Equal(videoframe.PixelFormatYUV420.String(), "YU12")
	is.Equal(videoframe.PixelFormatRGB24.String(), "RGB3")
}

func TestLendRevokesViewAfterCallback(t *testing.T) {
	is := is.New(t)
	g, err := videoframe.NewRGBGeometry(2, 2)
	is.NoErr(err)
	buf := make([]byte, g.SizeImage)

	var kept *videoframe.Frame
	err = videoframe.Lend(7, g, buf, func(f *videoframe.Frame) error {
		is.True(f.Valid())
		is.Equal(f.Seq(), uint64(7))
		is.Equal(f.Width(), 2)
		is.Equal(f.Height(), 2)
		f.Pix()[0] = 0xAB
		kept = f
		return nil
	})
	is.NoErr(err)
	is.Equal(buf[0], byte(0xAB))
	is.True(!kept.Valid())
	is.Equal(kept.Pix(), nil)
	is.Equal(kept.Width(), 0)
}

func TestLendReturnsCallbackError(t *testing.T) {
	g, err := videoframe.NewRGBGeometry(2, 2)
	require.NoError(t, err)
	want := errors.New("write failed")
	got := videoframe.Lend(1, g, make([]byte, g.SizeImage), func(*videoframe.Frame) error {
		return want
	})
	assert.ErrorIs(t, got, want)
}
