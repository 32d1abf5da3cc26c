package services

import "errors"

// Transmission service errors
var (
	// ErrNoReport means no estimation has run and nothing was persisted
	ErrNoReport = errors.New("no transmission report available")

	ErrInvalidInput    = errors.New("invalid input")
	ErrEstimateRunning = errors.New("estimation already running")

	// ErrReportSuperseded means a newer run replaced the report being updated
	ErrReportSuperseded = errors.New("transmission report superseded by a newer run")
)
