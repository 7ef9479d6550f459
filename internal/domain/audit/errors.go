package audit

import "errors"

// Input errors are the only caller-visible request failures. Collaborator
// failures degrade inside the pipeline and never surface here.
var (
	ErrEmptyCode           = errors.New("code cannot be empty")
	ErrCodeTooLarge        = errors.New("code exceeds maximum size")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrBatchEmpty          = errors.New("batch cannot be empty")
	ErrBatchTooLarge       = errors.New("batch exceeds maximum size")
)

// ErrVerifierUnavailable indicates the generative collaborator could not be
// reached after retries. The pipeline recovers from it; it exists so callers
// of the adapter can distinguish transport failure from empty output.
var ErrVerifierUnavailable = errors.New("verifier unavailable")
