package broker

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a malformed or missing configuration value
	ErrConfiguration = errors.New("configuration error")
	// ErrEngineStart marks a failure during connector setup or engine start
	ErrEngineStart = errors.New("engine start failed")
	// ErrEngineStop marks a failure while stopping the engine
	ErrEngineStop = errors.New("engine stop failed")
	// ErrInvalidState marks a lifecycle call made from a disallowed state
	ErrInvalidState = errors.New("invalid supervisor state")
)

// Error carries the failed operation, its kind and the underlying cause.
// Both Kind and Err are reachable with errors.Is and errors.As.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("broker %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("broker %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
