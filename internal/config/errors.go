package config

import "errors"

var (
	// ErrInvalidConfig classifies validation failures of loaded configuration.
	// Use errors.Is(err, ErrInvalidConfig) instead of string matching.
	ErrInvalidConfig = errors.New("invalid config")
)
