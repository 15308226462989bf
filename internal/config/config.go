package config

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/jrsteele09/go-auth-client/internal/errors"
)

type Config interface {
	EnvConfig
	SessionConfig
	StorageConfig
}

type EnvConfig interface {
	GetAPIURL() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type SessionConfig interface {
	GetExpiryBuffer() time.Duration
	GetHTTPTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	Session
	Storage
}

var _ Config = (*mainConfig)(nil)

// Load reads the configuration from PROPMAN_* environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads the configuration through the given lookuper (tests use envconfig.MapLookuper).
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var c mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &c,
		Lookuper: lookuper,
	}); err != nil {
		return nil, errors.Join(errors.ErrInvalidConfig, err)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(&c); err != nil {
		return nil, errors.Join(errors.ErrInvalidConfig, err)
	}
	if _, err := c.GetStoreKey(); err != nil {
		return nil, err
	}
	return &c, nil
}
