package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tauraamui/vcamd/internal/config"
	"github.com/tauraamui/vcamd/pkg/camera"
	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/vcamd/pkg/loopback"
	"github.com/tauraamui/vcamd/pkg/metrics"
	"github.com/tauraamui/vcamd/pkg/pipeline"
	"github.com/tauraamui/vcamd/pkg/video/videobackend"
	"github.com/tauraamui/vcamd/pkg/video/videobackend/opencv"
	"github.com/tauraamui/xerror"
)

var resolveBackend = func(values config.Values) (videobackend.Device, error) {
	switch values.Backend {
	case videobackend.KindOpenCV:
		return opencv.New(values.CameraID), nil
	case videobackend.KindMock:
		return videobackend.Mock(), nil
	}
	return nil, xerror.Errorf("unknown capture backend %q, expected one of %v", values.Backend, videobackend.Kinds())
}

// run streams until ctx is cancelled or the pipeline fails. A missing
// loopback device is reported as a warning rather than an error.
func run(ctx context.Context, values config.Values, logger log.Logger) error {
	log.SetLevel(values.LogLevel)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dev, err := resolveBackend(values)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec := metrics.NewRecorder(reg)
	if values.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, values.MetricsAddr, reg); err != nil {
				logger.Error("%v", err)
			}
		}()
	}

	src := camera.New(dev, logger, camera.FPS(values.FPS))
	sink := loopback.New(values.VirtualDevice, logger)
	ctrl := pipeline.New(
		pipeline.Config{Width: values.Width, Height: values.Height},
		src, sink,
		pipeline.WithLogger(logger),
		pipeline.WithRecorder(rec),
	)

	logger.Info("Starting run %s: %s camera %d -> %s at %dx%d",
		ctrl.RunID(), values.Backend, values.CameraID, values.VirtualDevice, values.Width, values.Height)

	err = ctrl.Run(ctx)
	if errors.Is(err, loopback.ErrDeviceMissing) {
		logger.Warn("Virtual device %s is missing, is the v4l2loopback module loaded? Streaming not started", values.VirtualDevice)
		return nil
	}
	if err != nil {
		return err
	}

	stats := ctrl.Stats()
	logger.Info("Shutdown successful after %d frames... BYE!", stats.FramesWritten)
	return nil
}
