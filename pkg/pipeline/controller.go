// Package pipeline wires a frame source through the timestamp overlay
// and the I420 converter into a virtual camera sink, and owns the
// lifecycle of a single run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/vcamd/pkg/loopback"
	"github.com/tauraamui/vcamd/pkg/metrics"
	"github.com/tauraamui/vcamd/pkg/overlay"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/vcamd/pkg/video/yuv"
	"github.com/tauraamui/xerror"
)

var (
	ErrConfig           = errors.New("pipeline configuration failed")
	ErrNotConfigured    = fmt.Errorf("%w: pipeline is not configured", ErrConfig)
	ErrStopped          = errors.New("pipeline has stopped")
	ErrAlreadyStreaming = errors.New("pipeline is already streaming")
)

type FrameSource interface {
	Configure(videoframe.Geometry) error
	RegisterFrameCallback(videoframe.Callback)
	Start() error
	Stop()
	Done() <-chan struct{}
	Err() error
}

type Sink interface {
	Configure(videoframe.Geometry) error
	Write([]byte) error
	Close() error
}

type Overlay interface {
	Stamp(f *videoframe.Frame, text string)
}

type Converter interface {
	Convert(dst []byte, f *videoframe.Frame) error
}

type Config struct {
	Width  int
	Height int
}

type Stats struct {
	FramesCaptured uint64
	FramesWritten  uint64
	BytesWritten   uint64
	WriteFailures  uint64
}

// Controller runs one pipeline. It moves from Unconfigured through
// Configured and Streaming to Stopped and never goes back.
type Controller struct {
	cfg     Config
	src     FrameSource
	sink    Sink
	log     log.Logger
	rec     metrics.Recorder
	now     func() time.Time
	overlay Overlay
	conv    Converter
	runID   string

	mu        sync.Mutex
	state     State
	sinkReady bool
	i420      []byte
	done      chan struct{}

	errMu sync.Mutex
	err   error

	framesCaptured atomic.Uint64
	framesWritten  atomic.Uint64
	bytesWritten   atomic.Uint64
	writeFailures  atomic.Uint64
}

func New(cfg Config, src FrameSource, sink Sink, opts ...Option) *Controller {
	c := &Controller{
		cfg: cfg, src: src, sink: sink,
		log:   log.WithPrefix(log.Nop(), "pipeline"),
		rec:   metrics.Nop(),
		now:   time.Now,
		conv:  yuv.Converter{},
		runID: uuid.NewString(),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RunID() string { return c.runID }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the pipeline reaches Stopped, including when the
// sink rejects its configuration.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err returns the error which ended the run, if any.
func (c *Controller) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Controller) Stats() Stats {
	return Stats{
		FramesCaptured: c.framesCaptured.Load(),
		FramesWritten:  c.framesWritten.Load(),
		BytesWritten:   c.bytesWritten.Load(),
		WriteFailures:  c.writeFailures.Load(),
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.rec.SetState(int(s))
	c.log.Debug("run %s is %s", c.runID, s)
}

func (c *Controller) fail(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Configure sets up the frame source and then the virtual sink. A
// missing sink device leaves the pipeline Configured but unable to
// stream, and the error is returned for the caller to report. Any other
// sink failure releases the camera and moves the pipeline straight to
// Stopped. Failures before the camera is opened leave it Unconfigured.
func (c *Controller) Configure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return ErrStopped
	}
	if c.state != Unconfigured {
		return xerror.Errorf("unable to configure pipeline which is %s", c.state)
	}

	capture, err := videoframe.NewRGBGeometry(c.cfg.Width, c.cfg.Height)
	if err != nil {
		return xerror.Errorf("%w: %w", ErrConfig, err)
	}
	output, err := videoframe.NewI420Geometry(c.cfg.Width, c.cfg.Height)
	if err != nil {
		return xerror.Errorf("%w: %w", ErrConfig, err)
	}

	if c.overlay == nil {
		stamper, err := overlay.NewTimestampStamper()
		if err != nil {
			return xerror.Errorf("%w: %w", ErrConfig, err)
		}
		c.overlay = stamper
	}

	if err := c.src.Configure(capture); err != nil {
		return xerror.Errorf("%w: unable to configure camera: %w", ErrConfig, err)
	}
	c.i420 = make([]byte, output.SizeImage)

	if err := c.sink.Configure(output); err != nil {
		if errors.Is(err, loopback.ErrDeviceMissing) {
			c.log.Warn("virtual device unavailable, streaming will not start: %v", err)
			c.setState(Configured)
			return err
		}
		err = xerror.Errorf("unable to configure virtual device: %w", err)
		c.src.Stop()
		c.fail(err)
		c.setState(Stopped)
		close(c.done)
		return err
	}

	c.sinkReady = true
	c.setState(Configured)
	c.log.Info("configured %s capture into %s output", capture, output)
	return nil
}

// Start registers the frame callback and starts capture.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Unconfigured:
		return ErrNotConfigured
	case Streaming:
		return ErrAlreadyStreaming
	case Stopped:
		return ErrStopped
	}
	if !c.sinkReady {
		return xerror.Errorf("streaming blocked: %w", loopback.ErrDeviceMissing)
	}

	c.src.RegisterFrameCallback(c.onFrame)
	if err := c.src.Start(); err != nil {
		return xerror.Errorf("unable to start capture: %w", err)
	}
	c.setState(Streaming)
	c.log.Info("streaming run %s", c.runID)
	go c.watch()
	return nil
}

// onFrame runs on the capture goroutine for every frame. It must not
// take c.mu, Stop holds it while waiting for capture to halt.
func (c *Controller) onFrame(f *videoframe.Frame) error {
	c.framesCaptured.Add(1)
	c.rec.FrameCaptured()

	c.overlay.Stamp(f, c.now().Format(overlay.TimestampLayout))

	if err := c.conv.Convert(c.i420, f); err != nil {
		err = xerror.Errorf("unable to convert frame %d: %w", f.Seq(), err)
		c.log.Error("%v", err)
		c.fail(err)
		return err
	}

	if err := c.sink.Write(c.i420); err != nil {
		c.writeFailures.Add(1)
		c.rec.WriteFailed()
		err = xerror.Errorf("unable to write frame %d to virtual device: %w", f.Seq(), err)
		c.log.Error("%v", err)
		c.fail(err)
		return err
	}

	c.framesWritten.Add(1)
	c.bytesWritten.Add(uint64(len(c.i420)))
	c.rec.FrameWritten(len(c.i420))
	return nil
}

// watch stops the run once capture halts by itself.
func (c *Controller) watch() {
	<-c.src.Done()
	if err := c.src.Err(); err != nil {
		c.fail(err)
	}
	c.Stop()
}

// Stop halts capture, waits for it, closes the sink and moves the
// pipeline to Stopped. Calling it when Unconfigured or already Stopped
// does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Unconfigured || c.state == Stopped {
		return
	}

	c.src.Stop()
	if err := c.sink.Close(); err != nil {
		c.log.Warn("unable to close virtual device: %v", err)
	}
	c.setState(Stopped)
	close(c.done)

	stats := c.Stats()
	c.log.Info("run %s stopped: %d frames captured, %d written (%d bytes), %d failed writes",
		c.runID, stats.FramesCaptured, stats.FramesWritten, stats.BytesWritten, stats.WriteFailures)
}

// Run configures and starts the pipeline, then idles until ctx is
// cancelled or the run ends by itself. The pipeline is always Stopped
// on return and the error that ended the run is returned.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Configure(); err != nil {
		c.Stop()
		return err
	}
	if err := c.Start(); err != nil {
		c.Stop()
		return err
	}

	select {
	case <-ctx.Done():
		c.log.Info("stop requested for run %s", c.runID)
	case <-c.done:
	}
	c.Stop()
	return c.Err()
}
