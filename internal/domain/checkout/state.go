package checkout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State of a checkout attempt
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateCommitting State = "committing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanTransitionTo checks if the state can move to target
func (s State) CanTransitionTo(target State) bool {
	switch s {
	case StateIdle:
		return target == StateValidating || target == StateFailed
	case StateValidating:
		return target == StateCommitting || target == StateFailed
	case StateCommitting:
		return target == StateSucceeded || target == StateFailed
	}
	return false
}

// Attempt records one run of the checkout state machine
type Attempt struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	State      State
	History    []State
	OrderID    uuid.UUID
	Failure    *Error
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewAttempt starts an attempt in Idle
func NewAttempt(userID uuid.UUID) *Attempt {
	return &Attempt{
		ID:        uuid.New(),
		UserID:    userID,
		State:     StateIdle,
		History:   []State{StateIdle},
		StartedAt: time.Now(),
	}
}

// Advance moves the attempt to a non-terminal state
func (a *Attempt) Advance(to State) error {
	if to.IsTerminal() {
		return fmt.Errorf("use Succeed or Fail to enter %s", to)
	}
	return a.transition(to)
}

// Succeed moves a committing attempt to Succeeded
func (a *Attempt) Succeed(orderID uuid.UUID) error {
	if err := a.transition(StateSucceeded); err != nil {
		return err
	}
	a.OrderID = orderID
	return nil
}

// Fail moves the attempt to Failed and returns failure for convenience
func (a *Attempt) Fail(failure *Error) *Error {
	if err := a.transition(StateFailed); err != nil {
		// already terminal; keep the first outcome
		return failure
	}
	a.Failure = failure
	return failure
}

// Duration returns how long the attempt ran
func (a *Attempt) Duration() time.Duration {
	if a.FinishedAt.IsZero() {
		return time.Since(a.StartedAt)
	}
	return a.FinishedAt.Sub(a.StartedAt)
}

func (a *Attempt) transition(to State) error {
	if !a.State.CanTransitionTo(to) {
		return fmt.Errorf("invalid checkout transition %s -> %s", a.State, to)
	}
	a.State = to
	a.History = append(a.History, to)
	if to.IsTerminal() {
		a.FinishedAt = time.Now()
	}
	return nil
}
