package collector

import "errors"

var (
	ErrInvalidPacket      = errors.New("packet has no sender")
	ErrInvalidNode        = errors.New("node has no num")
	ErrInvalidInterval    = errors.New("emit interval must be positive")
	ErrSourceURLRequired  = errors.New("source url is required")
	ErrInvalidSourceURL   = errors.New("source url must be http or https")
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrSourceStatus       = errors.New("unexpected source response")
	ErrDecodeNodes        = errors.New("failed to decode node database")
	ErrSourceAddress      = errors.New("source address is required")
	ErrUnknownSourceType  = errors.New("unknown source type")
	ErrDecodeFrame        = errors.New("failed to decode radio frame")
	ErrFrameTooLarge      = errors.New("radio frame too large")
	ErrCollectorStopped   = errors.New("collector stopped")
	ErrServiceNotStarted  = errors.New("service not started")
	ErrServiceAlreadyRuns = errors.New("service already running")
)
