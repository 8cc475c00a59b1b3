package config

import "errors"

var (
	errInvalidDuration = errors.New("invalid duration")

	ErrListenAddrRequired    = errors.New("listen_addr is required")
	ErrInvalidRetention      = errors.New("retention must be positive")
	ErrInvalidResolution     = errors.New("resolution must not be negative")
	ErrInvalidInterval       = errors.New("emit_interval must be positive")
	ErrSourceURLRequired     = errors.New("source url is required")
	ErrSourceAddressRequired = errors.New("source address is required")
	ErrUnknownSourceType     = errors.New("unknown source type")
	ErrDuplicateSource       = errors.New("duplicate source name")
	ErrInvalidMaxSamples     = errors.New("max_samples must not be negative")
)
