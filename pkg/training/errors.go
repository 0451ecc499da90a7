package training

import (
	"errors"
	"fmt"
)

var ErrInsufficientData = errors.New("insufficient training data")

// ErrJobNotComplete is returned when a job's artifact is requested before
// the job has completed.
var ErrJobNotComplete = errors.New("training job not complete")

// FitError reports the candidate whose fit aborted the run. It unwraps to
// the classifier's own error.
type FitError struct {
	Candidate string
	Stage     string
	Err       error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("candidate %s failed during %s: %v", e.Candidate, e.Stage, e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}
