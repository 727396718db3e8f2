// Package config loads service configuration from an optional file and the
// environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrInvalidConfig is returned when the provided config is not a pointer to a struct.
var ErrInvalidConfig = errors.New("config must be a pointer to a struct")

// Parse loads configuration into cfg, which must be a pointer to a struct
// using cleanenv tags (`env`, `env-default`, `env-prefix`, ...).
// If path is not empty the file is read first (yaml, json, toml or env,
// chosen by extension) and environment variables override its values.
// Defaults apply to fields set by neither.
func Parse(ctx context.Context, cfg any, path string) error {
	if v := reflect.ValueOf(cfg); v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return ErrInvalidConfig
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}

		return nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read env: %w", err)
	}

	return nil
}

// Usage returns a description of all environment variables understood by cfg.
func Usage(cfg any) (string, error) {
	usage, err := cleanenv.GetDescription(cfg, nil)
	if err != nil {
		return "", fmt.Errorf("describe config: %w", err)
	}

	return usage, nil
}
