package probe

import (
	"errors"
	"fmt"
)

// Kind classifies a probe failure.
type Kind int

const (
	// KindTransient is a non-zero exit from the speedtest tool. Retried.
	KindTransient Kind = iota + 1
	// KindTimeout means the attempt exceeded the configured wall clock. Retried.
	KindTimeout
	// KindParse means the tool exited 0 but its output was malformed or missing
	// required fields. Never retried: it indicates a version/schema problem,
	// not flakiness.
	KindParse
	// KindExhausted wraps the last transient/timeout error once every attempt
	// has been spent.
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTimeout:
		return "timeout"
	case KindParse:
		return "parse"
	case KindExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Error is a classified probe failure.
type Error struct {
	Kind     Kind
	Message  string
	Attempts int // attempts spent when the error escalated
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindExhausted {
		return fmt.Sprintf("speedtest failed after %d attempts: %s", e.Attempts, e.Message)
	}
	return fmt.Sprintf("speedtest %s failure: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind, or 0 when err is not a probe error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}
