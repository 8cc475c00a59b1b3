package server

import "errors"

var (
	errFailedToOpenDB        = errors.New("failed to open sample database")
	errFailedToLoadDashboard = errors.New("failed to load dashboard")
	errAlreadyStarted        = errors.New("server already started")
)
