package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config.yml"

	EnvConfigPath = "CONFIG_PATH"
	EnvClientURL  = "CLIENT_URL"
	EnvPort       = "PORT"
	EnvLogLevel   = "LOG_LEVEL"
)

type Config struct {
	Apps struct {
		LogLevel   string `yaml:"log_level"`
		LogToFiles bool   `yaml:"log_to_files"`
		Rest       struct {
			Port           int    `yaml:"port"`
			AllowedOrigin  string `yaml:"allowed_origin"`
			MaxMessageSize int64  `yaml:"max_message_size"`
			SendBuffer     int    `yaml:"send_buffer"`
			QueueSize      int    `yaml:"queue_size"`
		} `yaml:"rest"`
	} `yaml:"apps"`
	Storage struct {
		Rooms struct {
			Type string `yaml:"type"`
		} `yaml:"rooms"`
		Participants struct {
			Type string `yaml:"type"`
		} `yaml:"participants"`
	} `yaml:"storage"`
}

func DefaultConfig() *Config {
	var config Config
	config.Apps.LogLevel = "info"
	config.Apps.Rest.Port = 3000
	config.Apps.Rest.AllowedOrigin = "*"
	config.Apps.Rest.MaxMessageSize = 64 * 1024
	config.Apps.Rest.SendBuffer = 256
	config.Apps.Rest.QueueSize = 1024
	config.Storage.Rooms.Type = "in-memory"
	config.Storage.Participants.Type = "in-memory"
	return &config
}

// ParseConfig decodes the YAML file at path over the defaults.
func ParseConfig(path string, logger *zap.Logger) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		logger.Error("Failed to open config file", zap.Error(err))
		return nil, fmt.Errorf("error opening file %w", err)
	}
	defer file.Close()

	config := DefaultConfig()
	err = yaml.NewDecoder(file).Decode(config)
	if err != nil {
		logger.Error("Failed to decode config file", zap.Error(err))
		return nil, fmt.Errorf("error decoding file %w", err)
	}

	return config, nil
}

// LoadConfig reads the file named by CONFIG_PATH, falling back to the
// defaults when it does not exist, then applies environment overrides.
func LoadConfig(logger *zap.Logger) (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = DefaultConfigPath
	}

	var config *Config
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Info("Config file not found, using defaults", zap.String("path", path))
		config = DefaultConfig()
	} else {
		config, err = ParseConfig(path, logger)
		if err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides the allowed origin, port and log level from the
// environment.
func (c *Config) ApplyEnv() error {
	if origin := os.Getenv(EnvClientURL); origin != "" {
		c.Apps.Rest.AllowedOrigin = origin
	}
	if port := os.Getenv(EnvPort); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid %s %q", EnvPort, port)
		}
		c.Apps.Rest.Port = p
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Apps.LogLevel = level
	}
	return nil
}
