package client

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/smartselect/shortlist/internal/core"
	"github.com/smartselect/shortlist/internal/model"
	logx "github.com/smartselect/shortlist/pkg/logger"
	pkgredis "github.com/smartselect/shortlist/pkg/redis"
)

// Config defines every configurable parameter of the client, sourced from
// environment variables (loaded from .env for local runs).
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogFile     string `envconfig:"LOG_FILE"`

	// Backends
	API     model.APIConfig
	Reviews model.ReviewsConfig

	// Infrastructure
	Storage model.StorageConfig
	Redis   pkgredis.Config
	Tracing model.TracingConfig
}

func (c Config) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// LoadConfig reads envFile (if present) into the process environment and
// binds it into Config. A missing file is not an error.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logx.Debug().Str("file", envFile).Msg("no env file, using process environment")
			} else {
				logx.Warn().Err(err).Str("file", envFile).Msg("could not load env file")
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment config: %w", err)
	}
	return cfg, nil
}
