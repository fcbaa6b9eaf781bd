package battle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBattleOver indicates a step was requested after the battle ended.
	ErrBattleOver = errors.New("battle is over")
	// ErrUnknownUnit indicates a reference to a unit id the battle never had.
	ErrUnknownUnit = errors.New("unknown unit")
	// ErrUnknownStatus indicates a status name missing from the catalog.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrUnknownTemplate indicates a unit template missing from the catalog.
	ErrUnknownTemplate = errors.New("unknown unit template")
	// ErrUnknownScript indicates a scripted action the script host cannot run.
	ErrUnknownScript = errors.New("unknown script")
	// ErrInvalidContent indicates a malformed unit or status template.
	ErrInvalidContent = errors.New("invalid content")
	// ErrDuplicateName indicates a template registered twice.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrTriggerWithoutEffect indicates a trigger that yields nothing.
	ErrTriggerWithoutEffect = errors.New("trigger has no effect")
	// ErrMissingAction indicates a unit holding ability statuses without an action.
	ErrMissingAction = errors.New("unit has no action")
	// ErrEmptyRoster indicates a battle without units on both sides.
	ErrEmptyRoster = errors.New("roster needs units on both sides")
)

// PreconditionError reports an effect that referenced state which does not
// exist. It aborts the battle.
type PreconditionError struct {
	Effect QueuedEffect
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violated resolving %s: %v", e.Effect, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// CascadeError reports a drain that exceeded the iteration cap. Recent holds
// the last effects processed before the cap was hit, oldest first.
type CascadeError struct {
	Limit  int
	Recent []QueuedEffect
}

func (e *CascadeError) Error() string {
	parts := make([]string, len(e.Recent))
	for i, q := range e.Recent {
		parts[i] = q.String()
	}
	return fmt.Sprintf("effect cascade exceeded %d iterations; last effects: [%s]", e.Limit, strings.Join(parts, "; "))
}
