// Package config loads the daemon configuration file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration at path and applies defaults.
// A missing file yields the default configuration.
func Load(path string) (*models.Config, error) {
	config := &models.Config{}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			config.ApplyDefaults()
			return config, nil
		}
		return nil, fmt.Errorf("could not open config file %s: %w", path, err)
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	d.KnownFields(true)

	if err := d.Decode(config); err != nil {
		return nil, fmt.Errorf("could not decode config file %s: %w", path, err)
	}

	config.ApplyDefaults()
	return config, nil
}

// Save writes the configuration back to path
func Save(path string, config *models.Config) error {
	b, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("could not write config file %s: %w", path, err)
	}
	return nil
}
