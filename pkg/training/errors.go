package training

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound covers both live-job and durable lookups.
	ErrSessionNotFound = errors.New("training session not found")

	// ErrInitTimeout means the engine did not publish its session within
	// the bounded wait; the background task may still run as an orphan.
	ErrInitTimeout = errors.New("training session failed to initialize within deadline")

	// ErrModelNotTrained means no retained network is available for
	// prediction.
	ErrModelNotTrained = errors.New("no trained network available")
)

// AlreadyTrainingError rejects a start for a model with a live non-terminal
// session; SessionID identifies the blocking run so the caller can poll it.
type AlreadyTrainingError struct {
	ModelID   string
	SessionID string
}

func (e *AlreadyTrainingError) Error() string {
	return fmt.Sprintf("model %q is already running session %q", e.ModelID, e.SessionID)
}

// NotPredictableError rejects prediction on a session that is not in a
// predictable terminal state.
type NotPredictableError struct {
	Status string
}

func (e *NotPredictableError) Error() string {
	return fmt.Sprintf("training is not complete (status: %s)", e.Status)
}
