package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Reason tags why a pipeline step fell back to its default.
type Reason string

const (
	ReasonMissingInput  Reason = "missing_input"
	ReasonNotConfigured Reason = "not_configured"
	ReasonTimeout       Reason = "timeout"
	ReasonTransport     Reason = "transport"
	ReasonBadStatus     Reason = "bad_status"
	ReasonMalformed     Reason = "malformed"
	ReasonStore         Reason = "store"
	ReasonPanic         Reason = "panic"
)

// Failure is the error every telemetry collaborator returns.
type Failure struct {
	Step   string
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Step, f.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", f.Step, f.Reason, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// ReasonOf extracts the Reason from err, or "" if err is not a *Failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

func fail(step string, reason Reason, err error) *Failure {
	return &Failure{Step: step, Reason: reason, Err: err}
}

// transportFailure tags an HTTP client error as a timeout or a plain
// transport problem.
func transportFailure(step string, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return fail(step, ReasonTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fail(step, ReasonTimeout, err)
	}
	return fail(step, ReasonTransport, err)
}
