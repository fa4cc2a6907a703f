package apperrors

import "errors"

// Pipeline failure taxonomy. Components wrap these with fmt.Errorf("...: %w")
// and callers branch with errors.Is.
var (
	// ErrSchema means the data source could not be opened or introspected.
	// No question can be answered without a schema.
	ErrSchema = errors.New("schema error")
	// ErrGeneration covers language-model transport, rate-limit and response failures.
	ErrGeneration = errors.New("generation error")
	// ErrContractViolation means model output failed its required shape.
	ErrContractViolation = errors.New("generation contract violation")
	// ErrExecution means a validated statement failed at the data source.
	ErrExecution = errors.New("execution error")
	// ErrCache is best-effort and never blocks a response.
	ErrCache = errors.New("cache error")

	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
