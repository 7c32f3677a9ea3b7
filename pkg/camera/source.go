// Package camera drives a capture device and hands each frame, one at
// a time and in capture order, to a single registered callback.
package camera

import (
	"context"
	"errors"
	"sync"

	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/vcamd/pkg/video/videobackend"
	"github.com/tauraamui/vcamd/pkg/video/videoframe"
	"github.com/tauraamui/xerror"
)

var (
	ErrNotConfigured  = errors.New("frame source is not configured")
	ErrNoCallback     = errors.New("no frame callback registered")
	ErrAlreadyStarted = errors.New("frame source already started")
)

const defaultFPS = 30

type Option func(*Source)

// FPS sets the capture rate requested from the device.
func FPS(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.fps = n
		}
	}
}

// Source is the frame source of a pipeline run. It captures into a
// single buffer which is lent to the callback for each frame, so the
// callback for frame N+1 never starts before the one for frame N has
// returned.
type Source struct {
	dev videobackend.Device
	fps int
	log log.Logger

	mu         sync.Mutex
	geometry   videoframe.Geometry
	buf        []byte
	callback   videoframe.Callback
	configured bool
	started    bool
	stopped    bool
	ctx        context.Context
	cancel     context.CancelFunc
	err        error
	done       chan struct{}
	stopOnce   sync.Once
}

func New(device videobackend.Device, logger log.Logger, opts ...Option) *Source {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{
		dev: device, fps: defaultFPS,
		log: log.WithPrefix(logger, "camera"),
		ctx: ctx, cancel: cancel,
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure opens the device at the given capture geometry and
// allocates the frame buffer.
func (s *Source) Configure(g videoframe.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrNotConfigured
	}
	if s.started {
		return ErrAlreadyStarted
	}
	if s.configured {
		return xerror.Errorf("frame source already configured at %s", s.geometry)
	}

	if err := s.dev.Open(s.ctx, g, s.fps); err != nil {
		return xerror.Errorf("unable to configure capture at %s: %w", g, err)
	}
	s.geometry = g
	s.buf = make([]byte, g.SizeImage)
	s.configured = true
	s.log.Info("capturing %s at %d fps", g, s.fps)
	return nil
}

// RegisterFrameCallback sets the callback for the run. A later call
// replaces an earlier one until Start is called.
func (s *Source) RegisterFrameCallback(cb videoframe.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn("ignoring frame callback registered after start")
		return
	}
	s.callback = cb
}

// Start begins continuous capture on its own goroutine.
func (s *Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.configured || s.stopped {
		return ErrNotConfigured
	}
	if s.started {
		return ErrAlreadyStarted
	}
	if s.callback == nil {
		return ErrNoCallback
	}
	s.started = true
	go s.run(s.ctx, s.callback)
	return nil
}

func (s *Source) run(ctx context.Context, cb videoframe.Callback) {
	defer close(s.done)
	for seq := uint64(1); ; seq++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.dev.Read(s.buf); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.fail(xerror.Errorf("unable to read frame %d: %w", seq, err))
			return
		}

		if err := videoframe.Lend(seq, s.geometry, s.buf, cb); err != nil {
			s.fail(xerror.Errorf("frame %d rejected: %w", seq, err))
			return
		}
	}
}

func (s *Source) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	s.log.Debug("capture halted: %v", err)
}

// Stop halts capture, waits for the capture goroutine to exit and
// closes the device. It is safe to call more than once, but it must
// not be called from inside the frame callback.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.stopped = true
		started, configured := s.started, s.configured
		s.mu.Unlock()

		if started {
			<-s.done
		} else {
			close(s.done)
		}
		if configured {
			if err := s.dev.Close(); err != nil {
				s.log.Warn("unable to close capture device: %v", err)
			}
		}
	})
}

// Done is closed once capture has halted, either through Stop or
// because a read or the callback failed.
func (s *Source) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure which halted capture, if any.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
