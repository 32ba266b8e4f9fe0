package core

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteAssessment is returned when a summary is requested before
	// every symptom has been answered.  The backend is never called.
	ErrIncompleteAssessment = errors.New("assessment is not complete")

	// ErrUnableToGenerate is wrapped by every GenerationError.
	ErrUnableToGenerate = errors.New("unable to generate report")

	// ErrGenerationTimeout marks a final attempt that ran out of time.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrBackendUnavailable marks an attempt whose backend call failed.
	ErrBackendUnavailable = errors.New("generation backend unavailable")

	// ErrGenerationDisabled is returned when no backend is configured.
	ErrGenerationDisabled = errors.New("summary generation is not configured")
)

// GenerationError is returned once the attempt budget is spent.  Last is
// the failure of the final attempt: a *ContractViolation, or an error
// wrapping ErrGenerationTimeout or ErrBackendUnavailable.
type GenerationError struct {
	Attempts int
	Last     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrUnableToGenerate, e.Attempts, e.Last)
}

func (e *GenerationError) Unwrap() []error {
	return []error{ErrUnableToGenerate, e.Last}
}
