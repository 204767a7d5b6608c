package config

import "errors"

// ErrInvalidConfig marks a configuration that loaded but fails Validate.
var ErrInvalidConfig = errors.New("invalid mimic config")

// ErrLoadConfig marks a config file or environment that could not be read.
var ErrLoadConfig = errors.New("load mimic config")
