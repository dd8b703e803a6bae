package config

import (
	"errors"
	"fmt"
)

// Sentinel kinds for configuration errors.
var (
	ErrEmptyAddr       = errors.New("addr must not be empty")
	ErrUnknownBackend  = errors.New("unknown store backend")
	ErrMissingDSN      = errors.New("postgres backend requires postgres_dsn")
	ErrInvalidTopLimit = errors.New("max_top_limit must be positive")
)

// wrapLoad annotates provider/unmarshal failures.
func wrapLoad(err error) error {
	return fmt.Errorf("load config: %w", err)
}
