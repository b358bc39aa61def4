package lifecycle

import (
	"errors"
	"fmt"

	"ridetrack/internal/domain"
)

var (
	// ErrIllegalTransition is returned when an action is not legal from the
	// current status. It is raised before any network call.
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrPersistenceFailed is returned when the backend refused or never
	// received a legal transition. The status is left unchanged.
	ErrPersistenceFailed = errors.New("transition not persisted")

	// ErrUnknownKind is returned by For for an unknown ride kind.
	ErrUnknownKind = errors.New("unknown ride kind")
)

// TransitionError describes a rejected action.
type TransitionError struct {
	Lifecycle string
	From      domain.RideStatus
	Action    domain.RideAction
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s in status %q", ErrIllegalTransition, e.Action, e.Lifecycle, e.From)
}

// Is makes errors.Is(err, ErrIllegalTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// PersistenceError carries the action whose persistence failed so the
// caller can offer a retry.
type PersistenceError struct {
	Action domain.RideAction
	Target domain.RideStatus
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s (to %q): %v", ErrPersistenceFailed, e.Action, e.Target, e.Err)
}

// Is makes errors.Is(err, ErrPersistenceFailed) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistenceFailed
}

func (e *PersistenceError) Unwrap() error { return e.Err }
