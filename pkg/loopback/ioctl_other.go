//go:build !(linux && (amd64 || arm64 || arm))

package loopback

import (
	"runtime"

	"github.com/tauraamui/xerror"
)

func openV4L2(path string) (device, error) {
	return nil, xerror.Errorf("%s: v4l2 loopback is not supported on %s/%s: %w",
		path, runtime.GOOS, runtime.GOARCH, ErrOpenFailed)
}
