package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Bridge struct {
		// LibraryPath overrides the vendor library location; empty keeps
		// the adapter's platform default.
		LibraryPath string `yaml:"libraryPath"`
	} `yaml:"bridge"`
	Exporter struct {
		ListenAddress  string        `yaml:"listenAddress"`
		SampleInterval time.Duration `yaml:"sampleInterval"`
	} `yaml:"exporter"`
}

// Default is the configuration used when no config file is given.
func Default() *Config {
	var config Config
	config.Logger.Verbosity = "info"
	config.Exporter.ListenAddress = ":9535"
	config.Exporter.SampleInterval = 10 * time.Second
	return &config
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Exporter.SampleInterval <= 0 {
		return fmt.Errorf("exporter.sampleInterval must be positive, got %s", c.Exporter.SampleInterval)
	}
	if c.Exporter.ListenAddress == "" {
		return fmt.Errorf("exporter.listenAddress must not be empty")
	}
	return nil
}
