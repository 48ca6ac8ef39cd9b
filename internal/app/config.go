package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectPath string // project .hcl file or directory

	// OutDir and Workers override the project settings when set.
	OutDir  string
	Workers int

	LogFormat  string
	LogLevel   string
	StatusPort int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return nil, fmt.Errorf("status port %d is out of range", cfg.StatusPort)
	}
	return &cfg, nil
}
