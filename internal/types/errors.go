package types

import (
	"errors"
	"fmt"
)

// Core errors that can occur across the system.
var (
	// Authorization
	ErrPermissionDenied = errors.New("permission denied")

	// Durability: serialization or I/O failure on write/flush
	ErrStorage = errors.New("storage error")

	// Planning
	ErrPlanParse     = errors.New("supplied plan could not be parsed")
	ErrNoPlanMatched = errors.New("no planning rule matched this prompt")

	// IPC bind/listen
	ErrIPC = errors.New("ipc error")
)

// PermissionDeniedError reports the identity and the scope it was missing.
type PermissionDeniedError struct {
	Identity string
	Scope    AuthScope
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: identity %q lacks scope %s", e.Identity, e.Scope)
}

// Is makes errors.Is(err, ErrPermissionDenied) hold.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// PlanParseError describes why a supplied plan was rejected.
type PlanParseError struct {
	Reason string
	Err    error
}

func (e *PlanParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", ErrPlanParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%v: %s", ErrPlanParse, e.Reason)
}

func (e *PlanParseError) Is(target error) bool {
	return target == ErrPlanParse
}

func (e *PlanParseError) Unwrap() error {
	return e.Err
}
