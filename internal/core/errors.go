package core

import "errors"

var (
	// ErrInsufficientEvidence means the retriever produced nothing usable and
	// the composer should take the web fallback path.
	ErrInsufficientEvidence = errors.New("insufficient local evidence")

	// ErrGenerationFailure is matched by every GenerationError.
	ErrGenerationFailure = errors.New("generation failure")
)

// GenerationError wraps a failed call to the language generation service.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return ErrGenerationFailure.Error()
	}
	return ErrGenerationFailure.Error() + ": " + e.Err.Error()
}

// Is reports ErrGenerationFailure so callers need not know the concrete type.
func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailure }

func (e *GenerationError) Unwrap() error { return e.Err }
