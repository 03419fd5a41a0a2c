package app

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrAnalysisInProgress = errors.New("analysis already in progress")
	ErrNotStarted         = errors.New("service not started")
	ErrNoDetectorLoader   = errors.New("no detector loader configured")
	ErrNoOpener           = errors.New("no frame opener configured")
)
