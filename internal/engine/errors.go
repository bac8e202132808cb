package engine

import "errors"

var (
	// ErrTimedOut marks a run cancelled by the pipeline-wide timeout.
	ErrTimedOut = errors.New("pipeline timed out")
)
