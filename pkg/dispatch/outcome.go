package dispatch

import "fmt"

// Status classifies how a dispatched task ended.
type Status int

const (
	// StatusDone means the handler reviewed the change and published it.
	StatusDone Status = iota
	// StatusSkipped means the handler deliberately did no work (duplicate
	// delivery, ignored action, push review disabled, skip rule).
	StatusSkipped
	// StatusFailed means the handler hit an error; the task is logged and
	// abandoned, never retried.
	StatusFailed
)

// Outcome is what a handler returns to the task runner instead of using
// errors for control flow. The runner decides logging per variant.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

// Done reports a completed review.
func Done() Outcome {
	return Outcome{Status: StatusDone}
}

// Skip reports deliberately skipped work.
func Skip(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusSkipped, Reason: fmt.Sprintf(format, args...)}
}

// Fail reports a task error.
func Fail(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}
