package transform

import "errors"

var (
	ErrUnknownTransformation = errors.New("unknown transformation")
	ErrUnknownJoinMode       = errors.New("unknown join mode")
	ErrInvalidOptions        = errors.New("invalid transformation options")
	ErrUnsupportedValue      = errors.New("unsupported result type")
	ErrJoinFieldRequired     = errors.New("join field required")
)
