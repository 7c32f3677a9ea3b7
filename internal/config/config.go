package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/tauraamui/xerror"
	"gopkg.in/dealancer/validate.v2"
)

const (
	vendorName     = "tacusci"
	appName        = "vcamd"
	configFileName = "config.json"
	configPathEnv  = "VCAMD_CONFIG"
)

var ErrConfigAlreadyExists = errors.New("config file already exists")

var fs afero.Fs = afero.NewOsFs()

type Values struct {
	Width         int    `json:"width" validate:"gte=2 & lte=7680"`
	Height        int    `json:"height" validate:"gte=2 & lte=4320"`
	CameraID      int    `json:"camera_id" validate:"gte=0"`
	VirtualDevice string `json:"virtual_device" validate:"empty=false"`
	FPS           int    `json:"fps" validate:"gte=1 & lte=60"`
	Backend       string `json:"backend" validate:"one_of=opencv,mock"`
	LogLevel      string `json:"log_level" validate:"one_of=debug,info,warn,silent"`
	MetricsAddr   string `json:"metrics_addr"`
}

func Default() Values {
	return Values{
		Width:         1920,
		Height:        1080,
		CameraID:      0,
		VirtualDevice: "/dev/video8",
		FPS:           30,
		Backend:       "opencv",
		LogLevel:      "warn",
	}
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

// Validate checks the rules struct tags can't express.
func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if v.Width%2 != 0 || v.Height%2 != 0 {
		return fmt.Errorf(validationErrorHeader,
			fmt.Errorf("resolution %dx%d must have even dimensions", v.Width, v.Height))
	}
	return nil
}

// Path resolves the location of the config file.
func Path() (string, error) {
	return resolveConfigPath()
}

func resolveConfigPath() (string, error) {
	configPath := os.Getenv(configPathEnv)
	if len(configPath) > 0 {
		return configPath, nil
	}

	configParentDir, err := userConfigDir()
	if err != nil {
		return "", xerror.Errorf("unable to resolve %s location: %w", configFileName, err)
	}

	return filepath.Join(
		configParentDir,
		vendorName,
		appName,
		configFileName), nil
}

var userConfigDir = func() (string, error) {
	return os.UserConfigDir()
}
