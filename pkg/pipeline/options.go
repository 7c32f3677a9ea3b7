package pipeline

import (
	"time"

	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/vcamd/pkg/metrics"
)

type Option func(*Controller)

func WithLogger(l log.Logger) Option {
	return func(c *Controller) { c.log = log.WithPrefix(l, "pipeline") }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Controller) { c.rec = r }
}

// WithClock replaces the wall clock used for the timestamp stamp.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithOverlay(o Overlay) Option {
	return func(c *Controller) { c.overlay = o }
}

func WithConverter(conv Converter) Option {
	return func(c *Controller) { c.conv = conv }
}
