// Package config provides environment-based configuration loading and
// validation for ratecore, following the teacher's pkg/config: read from
// environment variables (and an optional .env file) via struct tags, then
// validate the result.
//
// Usage:
//
//	var cfg ratelimit.EngineConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	rcerrors "github.com/lattice-run/ratecore/pkg/errors"
)

// Load reads configuration from a .env file if present, falling back to
// process environment variables, then validates the result.
func Load[T any](cfg *T) error {
	if err := cleanenv.ReadConfig(".env", cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return rcerrors.NewConfigError("failed to read environment configuration", "env", err.Error())
		}
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return rcerrors.NewConfigError("configuration validation failed", "struct", err.Error())
	}

	return nil
}
