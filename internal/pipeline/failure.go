package pipeline

import (
	"errors"
	"fmt"
)

// Step names the workflow stage a failure belongs to.
type Step string

// Workflow steps.
const (
	StepDiscover Step = "discover"
	StepExtract  Step = "extract"
	StepCompose  Step = "compose"
	StepAct      Step = "act"
)

// Failure is a classified step failure. Retryable failures consume a retry
// slot and re-queue; permanent ones terminate the attendee's processing for
// the run with the attempt count left as-is.
type Failure struct {
	Step      Step
	Permanent bool
	Err       error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	kind := "transient"
	if f.Permanent {
		kind = "permanent"
	}
	return fmt.Sprintf("%s: %s: %v", f.Step, kind, f.Err)
}

// Unwrap exposes the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Transient wraps err as a retryable failure of the given step.
func Transient(step Step, err error) *Failure {
	return &Failure{Step: step, Err: err}
}

// PermanentFailure wraps err as a non-retryable failure of the given step.
func PermanentFailure(step Step, err error) *Failure {
	return &Failure{Step: step, Permanent: true, Err: err}
}

// classify normalises an arbitrary error into a Failure. Executors tag their
// own errors; anything unclassified defaults to retryable, bounded by the
// attempt cap, since an unknown failure mode is more often a slow page than a
// missing feature.
func classify(step Step, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Step: step, Err: err}
}
