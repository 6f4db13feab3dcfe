package session

import (
	"errors"
	"fmt"
)

// ErrExpectTimeout is returned by Expect when the deadline elapsed with no
// match. Test with errors.Is.
var ErrExpectTimeout = errors.New("session: expect timeout")

// ErrControlCodeInvalid is returned by SendControl for a byte outside the
// recognized control-code set.
var ErrControlCodeInvalid = errors.New("session: invalid control code")

// EofError is returned by Expect when the needle can never match because
// the stream ended; it carries the residual buffer for diagnostic prose.
type EofError struct {
	Residual []byte
}

func (e *EofError) Error() string {
	return fmt.Sprintf("session: eof with %d unmatched residual byte(s)", len(e.Residual))
}

// CommandParsingError is returned by Spawn when the command string cannot
// be split into argv, or argv[0] is not found on PATH.
type CommandParsingError struct {
	Command string
	Err     error
}

func (e *CommandParsingError) Error() string {
	return fmt.Sprintf("session: cannot parse command %q: %v", e.Command, e.Err)
}

func (e *CommandParsingError) Unwrap() error { return e.Err }

// RegexCompileError wraps a regexp.Compile failure for a needle built from
// a user-supplied pattern string.
type RegexCompileError struct {
	Pattern string
	Err     error
}

func (e *RegexCompileError) Error() string {
	return fmt.Sprintf("session: invalid regex %q: %v", e.Pattern, e.Err)
}

func (e *RegexCompileError) Unwrap() error { return e.Err }

// WaitFailedError wraps a failure reaping the child process.
type WaitFailedError struct{ Err error }

func (e *WaitFailedError) Error() string { return fmt.Sprintf("session: wait failed: %v", e.Err) }
func (e *WaitFailedError) Unwrap() error { return e.Err }

// UnknownWaitStatusError is returned when the child was reaped but the
// platform reported no interpretable exit status.
type UnknownWaitStatusError struct{}

func (e *UnknownWaitStatusError) Error() string { return "session: unknown wait status" }

// InteractHookFailedError wraps an error an Interact hook returned.
type InteractHookFailedError struct{ Err error }

func (e *InteractHookFailedError) Error() string {
	return fmt.Sprintf("session: interact hook failed: %v", e.Err)
}
func (e *InteractHookFailedError) Unwrap() error { return e.Err }

// OtherError is the catch-all for platform-specific failures that don't
// fit another kind; Msg must carry human-readable context.
type OtherError struct{ Msg string }

func (e *OtherError) Error() string { return "session: " + e.Msg }
