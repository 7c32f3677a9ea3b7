package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tacusci/logging/v2"
	"github.com/tauraamui/vcamd/internal/config"
	"github.com/tauraamui/vcamd/pkg/log"
	"github.com/tauraamui/xerror"
)

const envPrefix = "VCAMD"

// flag name to config key
var flagKeys = map[string]string{
	"width":          "width",
	"height":         "height",
	"camera-id":      "camera_id",
	"virtual-device": "virtual_device",
	"fps":            "fps",
	"backend":        "backend",
	"log-level":      "log_level",
	"metrics-addr":   "metrics_addr",
}

var runPipeline = run

type rootOptions struct {
	cfgFile    string
	initConfig bool
	service    string
}

func newRootCmd() *cobra.Command {
	opts := rootOptions{}
	v := viper.New()
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "vcamd",
		Short: "Stream a timestamped camera feed into a virtual camera",
		Long: `vcamd captures frames from a camera, stamps the current time onto each
one, converts them to planar YUV 4:2:0 and writes them to a v4l2loopback
device, which other applications can then open as a regular camera.

Every flag can also be set in the config file or through a VCAMD_ prefixed
environment variable, e.g. VCAMD_VIRTUAL_DEVICE=/dev/video10.`,
		Example: `  # Stream camera 0 to /dev/video8 at 1920x1080
  vcamd

  # Stream a synthetic test card instead of a camera
  vcamd --backend mock --width 1280 --height 720

  # Install and start as a system service
  vcamd --service install
  vcamd --service start`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.service != "" {
				return manageService(cmd, opts)
			}
			if opts.initConfig {
				return createConfig(cmd)
			}

			values, err := resolveValues(v, opts.cfgFile)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPipeline(ctx, values, log.Default())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $VCAMD_CONFIG or <user config dir>/tacusci/vcamd/config.json)")
	flags.BoolVar(&opts.initConfig, "init-config", false, "write the default config file and exit")
	flags.StringVar(&opts.service, "service", "", "manage the system service: install | remove | start | stop | status")
	flags.Int("width", d.Width, "frame width in pixels")
	flags.Int("height", d.Height, "frame height in pixels")
	flags.Int("camera-id", d.CameraID, "index of the camera to capture from")
	flags.String("virtual-device", d.VirtualDevice, "v4l2loopback device to write frames to")
	flags.Int("fps", d.FPS, "capture frame rate")
	flags.String("backend", d.Backend, "capture backend (opencv, mock)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, silent)")
	flags.String("metrics-addr", d.MetricsAddr, "serve Prometheus metrics on this address, e.g. :9108")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

// resolveValues layers explicitly set flags and environment variables
// over the config file, which is itself layered over the defaults.
func resolveValues(v *viper.Viper, cfgFile string) (config.Values, error) {
	var (
		values config.Values
		err    error
	)
	if cfgFile != "" {
		values, err = config.LoadFrom(cfgFile)
	} else {
		values, err = config.Load()
	}
	if err != nil {
		return config.Values{}, xerror.Errorf("unable to load config: %w", err)
	}

	if v.IsSet("width") {
		values.Width = v.GetInt("width")
	}
	if v.IsSet("height") {
		values.Height = v.GetInt("height")
	}
	if v.IsSet("camera_id") {
		values.CameraID = v.GetInt("camera_id")
	}
	if v.IsSet("virtual_device") {
		values.VirtualDevice = v.GetString("virtual_device")
	}
	if v.IsSet("fps") {
		values.FPS = v.GetInt("fps")
	}
	if v.IsSet("backend") {
		values.Backend = strings.ToLower(v.GetString("backend"))
	}
	if v.IsSet("log_level") {
		values.LogLevel = strings.ToLower(v.GetString("log_level"))
	}
	if v.IsSet("metrics_addr") {
		values.MetricsAddr = v.GetString("metrics_addr")
	}

	if err := values.RunValidate(); err != nil {
		return config.Values{}, err
	}
	return values, nil
}

func createConfig(cmd *cobra.Command) error {
	path, err := config.Create()
	if err != nil {
		return xerror.Errorf("unable to create config at %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", path)
	return nil
}

func manageService(cmd *cobra.Command, opts rootOptions) error {
	srv, err := newDaemon()
	if err != nil {
		return err
	}

	var installArgs []string
	if opts.cfgFile != "" {
		installArgs = append(installArgs, "--config", opts.cfgFile)
	}

	service := &Service{srv}
	status, err := service.Manage(opts.service, installArgs...)
	if err != nil {
		return err
	}
	logging.Info(status) //nolint
	return nil
}
