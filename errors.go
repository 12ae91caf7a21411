package fsm

import (
	"fmt"

	"github.com/stateforward/go-fsm/kinds"
)

// Error is the error type returned by every Machine operation. Two errors match
// under errors.Is when the target's kind is the error's kind or one of its
// ancestors, so ErrTimer matches a blocked timer as well as a duplicate one.
type Error struct {
	kind    uint64
	message string
	cause   error
}

func (err *Error) Error() string {
	if err.cause != nil {
		return err.message + ": " + err.cause.Error()
	}
	return err.message
}

func (err *Error) Kind() uint64 {
	return err.kind
}

func (err *Error) Unwrap() error {
	return err.cause
}

func (err *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return kinds.IsKind(err.kind, other.kind)
}

var (
	ErrRegistration   = &Error{kind: kinds.Registration, message: "registration error"}
	ErrDuplicateState = &Error{kind: kinds.DuplicateState, message: "state already exists"}
	ErrMissingField   = &Error{kind: kinds.MissingField, message: "missing member"}
	ErrCallableField  = &Error{kind: kinds.CallableField, message: "member should not be callable"}
	ErrFieldType      = &Error{kind: kinds.FieldType, message: "member type mismatch"}
	ErrMissingMethod  = &Error{kind: kinds.MissingMethod, message: "missing method"}
	ErrNotCallable    = &Error{kind: kinds.NotCallable, message: "member should be a method"}

	ErrLifecycle     = &Error{kind: kinds.Lifecycle, message: "lifecycle error"}
	ErrStopped       = &Error{kind: kinds.Stopped, message: "machine is stopped"}
	ErrRunning       = &Error{kind: kinds.Running, message: "machine is running"}
	ErrUnknownState  = &Error{kind: kinds.UnknownState, message: "unknown state"}
	ErrUnknownMethod = &Error{kind: kinds.UnknownMethod, message: "unknown method"}
	ErrArguments     = &Error{kind: kinds.Arguments, message: "invalid arguments"}
	ErrEntry         = &Error{kind: kinds.Entry, message: "entry action failed"}

	ErrTimer          = &Error{kind: kinds.Timer, message: "timer error"}
	ErrDuplicateTimer = &Error{kind: kinds.DuplicateTimer, message: "timer already exists"}
	ErrBlocked        = &Error{kind: kinds.Blocked, message: "timer blocked"}
	ErrUnbound        = &Error{kind: kinds.Unbound, message: "state is not registered with a machine"}
	ErrInvalidDelay   = &Error{kind: kinds.InvalidDelay, message: "invalid timer delay"}
	ErrTimerAction    = &Error{kind: kinds.TimerAction, message: "timer action failed"}
)

func errorf(sentinel *Error, format string, args ...any) *Error {
	return &Error{kind: sentinel.kind, message: fmt.Sprintf(format, args...)}
}

func wrap(sentinel *Error, cause error, format string, args ...any) *Error {
	return &Error{kind: sentinel.kind, message: fmt.Sprintf(format, args...), cause: cause}
}
