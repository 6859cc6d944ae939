package processing

import (
	"errors"
	"fmt"
)

var (
	// ErrPipelineFailure matches every error returned by Pipeline.Process.
	ErrPipelineFailure = errors.New("processing: pipeline failed")

	ErrEmptyRecording  = errors.New("recording is empty")
	ErrUnsupportedMIME = errors.New("unsupported MIME type")
	ErrInvalidDuration = errors.New("duration must be finite and positive")
)

// PipelineError records the stage at which a run failed.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("processing: %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Is(target error) bool { return target == ErrPipelineFailure }

func (e *PipelineError) Unwrap() error { return e.Err }
