package session

import (
	"errors"

	"github.com/bandup/session-service/internal/catalog"
	"github.com/bandup/session-service/internal/grading"
	"github.com/bandup/session-service/internal/timer"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionAccessDenied = errors.New("access denied to session")
	ErrSessionNotRunning   = errors.New("session is not running")
	ErrSessionRunning      = errors.New("session is already running")
	ErrSessionSubmitted    = errors.New("session already submitted")
	ErrSubmissionInFlight  = errors.New("submission already in progress")
	ErrNoQuestion          = errors.New("question id is required")
)

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, catalog.ErrSectionNotFound) ||
		errors.Is(err, grading.ErrNoResult) ||
		errors.Is(err, grading.ErrSubmissionLogNotFound)
}

// IsConflict checks if error represents an invalid state transition
func IsConflict(err error) bool {
	return errors.Is(err, ErrSessionNotRunning) ||
		errors.Is(err, ErrSessionRunning) ||
		errors.Is(err, ErrSessionSubmitted) ||
		errors.Is(err, ErrSubmissionInFlight) ||
		errors.Is(err, timer.ErrNoTimeBudget)
}

// IsPrecondition checks if error represents a missing external precondition
func IsPrecondition(err error) bool {
	return errors.Is(err, grading.ErrMissingAttempt)
}

// IsUpstream checks if error came from a remote collaborator
func IsUpstream(err error) bool {
	return errors.Is(err, catalog.ErrCatalogUnavailable) ||
		errors.Is(err, grading.ErrGradingFailed)
}

// IsBadRequest checks if error represents invalid caller input
func IsBadRequest(err error) bool {
	return errors.Is(err, catalog.ErrInvalidMode) ||
		errors.Is(err, catalog.ErrNoSections) ||
		errors.Is(err, ErrNoQuestion)
}
