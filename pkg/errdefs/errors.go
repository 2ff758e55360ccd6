// Package errdefs defines the error taxonomy shared by the kernelbox
// client SDKs and the resource daemon. Callers classify failures with
// errors.Is / errors.As rather than string matching.
package errdefs

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnection indicates a service never became reachable after
	// bounded readiness retries.
	ErrConnection = errors.New("connection failed")

	// ErrValidation indicates malformed input, such as a tool server
	// descriptor with neither a command nor a URL.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates a missing module, file, server directory or tool.
	ErrNotFound = errors.New("not found")

	// ErrPermission indicates an operation refused for privilege reasons,
	// such as firewall activation inside a root container.
	ErrPermission = errors.New("permission denied")

	// ErrState indicates an operation against a session in the wrong
	// lifecycle state (not running, already destroyed, already started).
	ErrState = errors.New("invalid state")
)

// ConnectionError wraps ErrConnection with the endpoint that never
// answered and the probe budget that was exhausted.
type ConnectionError struct {
	Endpoint string
	Attempts int
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %s not reachable after %d attempts", e.Endpoint, e.Attempts)
}

func (e *ConnectionError) Unwrap() error { return ErrConnection }

// ExecutionError is raised when remote code raises an exception or fails
// to parse. Name, Value and Trace carry the remote diagnostics verbatim.
type ExecutionError struct {
	Name  string // exception class name, e.g. "ZeroDivisionError"
	Value string // exception summary
	Trace string // full remote traceback, newline-joined
}

func (e *ExecutionError) Error() string {
	if e.Value == "" {
		return e.Name
	}
	return e.Name + ": " + e.Value
}

// TimeoutError is raised when a client-side wait deadline elapses. It is
// distinct from ExecutionError: the remote execution may still have run
// to an arbitrary point before the interrupt took effect.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
