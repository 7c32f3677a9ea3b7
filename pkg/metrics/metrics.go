// Package metrics records pipeline throughput as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tauraamui/xerror"
)

const namespace = "vcamd"

// Recorder receives pipeline events from the frame callback and the
// controller.
type Recorder interface {
	FrameCaptured()
	FrameWritten(bytes int)
	WriteFailed()
	SetState(state int)
}

type PrometheusRecorder struct {
	framesCaptured prometheus.Counter
	framesWritten  prometheus.Counter
	bytesWritten   prometheus.Counter
	writeFailures  prometheus.Counter
	state          prometheus.Gauge
}

// NewRecorder registers the pipeline metrics with reg.
func NewRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		framesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Frames handed to the pipeline by the capture device",
		}),
		framesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_written_total",
			Help:      "Frames written to the loopback device",
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to the loopback device",
		}),
		writeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Failed writes to the loopback device",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_state",
			Help:      "Pipeline state: 0 unconfigured, 1 configured, 2 streaming, 3 stopped",
		}),
	}
}

func (r *PrometheusRecorder) FrameCaptured() { r.framesCaptured.Inc() }

func (r *PrometheusRecorder) FrameWritten(bytes int) {
	r.framesWritten.Inc()
	r.bytesWritten.Add(float64(bytes))
}

func (r *PrometheusRecorder) WriteFailed() { r.writeFailures.Inc() }

func (r *PrometheusRecorder) SetState(state int) { r.state.Set(float64(state)) }

type nop struct{}

// Nop returns a Recorder which records nothing.
func Nop() Recorder { return nop{} }

func (nop) FrameCaptured()   {}
func (nop) FrameWritten(int) {}
func (nop) WriteFailed()     {}
func (nop) SetState(int)     {}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return xerror.Errorf("metrics listener on %s failed: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return xerror.Errorf("unable to shut down metrics listener: %w", err)
		}
		if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
