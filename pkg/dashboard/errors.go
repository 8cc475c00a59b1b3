package dashboard

import "errors"

var (
	ErrSchemaVersion    = errors.New("unsupported schema version")
	ErrFormatVersion    = errors.New("unsupported dashboard version")
	ErrUIDRequired      = errors.New("dashboard uid is required")
	ErrDuplicatePanelID = errors.New("duplicate panel id")
	ErrInvalidPanelID   = errors.New("panel id must be positive")
	ErrDuplicateRefID   = errors.New("duplicate target refId")
	ErrEmptyExpr        = errors.New("target expr is empty")
	ErrDuplicateUID     = errors.New("duplicate dashboard uid")
	ErrNotFound         = errors.New("not found")
	ErrInvalidTimeRange = errors.New("invalid time range")
)
