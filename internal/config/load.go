package config

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Load reads the config file over the defaults. A missing file is not
// an error, the defaults are returned as is.
func Load() (Values, error) {
	configPath, err := resolveConfigPath()
	if err != nil {
		return Values{}, err
	}
	return LoadFrom(configPath)
}

// LoadFrom is Load for an explicit file path.
func LoadFrom(configPath string) (Values, error) {
	values := Default()

	exists, err := afero.Exists(fs, configPath)
	if err != nil {
		return Values{}, errors.Wrapf(err, "unable to stat %s", configPath)
	}
	if !exists {
		return values, nil
	}

	file, err := readConfigFile(configPath)
	if err != nil {
		return Values{}, errors.Wrapf(err, "unable to read %s", configPath)
	}

	if err := unmarshal(file, &values); err != nil {
		return Values{}, err
	}

	if err := values.RunValidate(); err != nil {
		return Values{}, err
	}

	return values, nil
}

var readConfigFile = func(path string) ([]byte, error) {
	return afero.ReadFile(fs, path)
}

func unmarshal(content []byte, values *Values) error {
	err := json.Unmarshal(content, values)
	if err != nil {
		return errors.Errorf("parsing configuration error: %v", err)
	}
	return nil
}
