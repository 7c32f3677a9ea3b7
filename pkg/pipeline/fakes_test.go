package pipeline_test

import (
	"fmt"
	"sync"

	"github.com/tauraamui/vcamd/pkg/video/videoframe"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, a...))
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeSource lends a scripted number of frames, each filled with its
// sequence number, then idles until stopped.
type fakeSource struct {
	mu           sync.Mutex
	frames       int
	configureErr error
	geometry     videoframe.Geometry
	cb           videoframe.Callback
	started      bool
	callbacks    int
	err          error
	stopCalls    int
	stop         chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

func newFakeSource(frames int) *fakeSource {
	return &fakeSource{frames: frames, stop: make(chan struct{}), done: make(chan struct{})}
}

func (s *fakeSource) Configure(g videoframe.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configureErr != nil {
		return s.configureErr
	}
	s.geometry = g
	return nil
}

func (s *fakeSource) RegisterFrameCallback(cb videoframe.Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *fakeSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	go s.run(s.geometry, s.cb)
	return nil
}

func (s *fakeSource) run(g videoframe.Geometry, cb videoframe.Callback) {
	defer close(s.done)
	pix := make([]byte, g.SizeImage)
	for seq := 1; seq <= s.frames; seq++ {
		select {
		case <-s.stop:
			return
		default:
		}
		for i := range pix {
			pix[i] = byte(seq)
		}
		s.mu.Lock()
		s.callbacks++
		s.mu.Unlock()
		if err := videoframe.Lend(uint64(seq), g, pix, cb); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
	<-s.stop
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	s.stopCalls++
	started := s.started
	s.mu.Unlock()
	s.stopOnce.Do(func() {
		close(s.stop)
		if started {
			<-s.done
			return
		}
		close(s.done)
	})
}

func (s *fakeSource) Done() <-chan struct{} { return s.done }

func (s *fakeSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSource) counts() (callbacks, stops int, started bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks, s.stopCalls, s.started
}

type fakeSink struct {
	mu           sync.Mutex
	events       *eventLog
	configureErr error
	configured   []videoframe.Geometry
	failOn       int
	writeErr     error
	attempts     int
	sizes        []int
	closeCalls   int
}

func (s *fakeSink) Configure(g videoframe.Geometry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configured = append(s.configured, g)
	return s.configureErr
}

func (s *fakeSink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.writeErr != nil && s.attempts == s.failOn {
		return s.writeErr
	}
	s.sizes = append(s.sizes, len(p))
	if s.events != nil {
		s.events.add("write:%d", p[0])
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	return nil
}

func (s *fakeSink) written() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.sizes...)
}

func (s *fakeSink) closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

type taggingOverlay struct {
	events *eventLog
	texts  []string
}

func (o *taggingOverlay) Stamp(f *videoframe.Frame, text string) {
	o.texts = append(o.texts, text)
	o.events.add("stamp:%d", f.Seq())
}

// taggingConverter writes the frame's sequence tag into the output so
// the sink double can tell frames apart.
type taggingConverter struct {
	events *eventLog
}

func (c taggingConverter) Convert(dst []byte, f *videoframe.Frame) error {
	c.events.add("convert:%d", f.Pix()[0])
	dst[0] = f.Pix()[0]
	return nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Info(string, ...interface{})  {}

func (l *recordingLogger) Warn(format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, a...))
}

func (l *recordingLogger) Error(format string, a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, a...))
}

func (l *recordingLogger) errorLines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

type recordingRecorder struct {
	mu     sync.Mutex
	states []int
	frames int
	bytes  int
	failed int
}

func (r *recordingRecorder) FrameCaptured() {}

func (r *recordingRecorder) FrameWritten(bytes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	r.bytes += bytes
}

func (r *recordingRecorder) WriteFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed++
}

func (r *recordingRecorder) SetState(state int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}
