package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates that input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrEmptyDocument indicates that an uploaded document contains no extractable text
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrUnsupportedType indicates an upload with a file type the ingest pipeline cannot parse
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")
)

// TransientError marks a provider-level failure: the vector store, a model
// provider, or the web search service was unreachable, rate limited, or timed
// out. It is never retried where it occurs; the workflow engine aborts the run
// and reports it.
type TransientError struct {
	Provider string // logical provider name, e.g. "vector-store", "tavily"
	Op       string // operation that failed, e.g. "search", "generate"
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure in %s: %v", e.Provider, e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the given provider and operation.
func Transient(provider, op string, err error) error {
	return &TransientError{Provider: provider, Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// SchemaParseError reports that a language-model response could not be parsed
// into the structured output a node requires. The raw model output is retained
// for diagnostics. It is fatal for the run: the engine never substitutes a
// guessed value for an unparseable verdict, score, or query.
type SchemaParseError struct {
	Node string // workflow node that issued the call
	Raw  string // raw model output that failed to parse
	Err  error
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("%s: model output did not match schema: %v", e.Node, e.Err)
}

func (e *SchemaParseError) Unwrap() error { return e.Err }

// SchemaParse wraps err as a SchemaParseError for the given node, keeping raw
// for diagnostics.
func SchemaParse(node, raw string, err error) error {
	return &SchemaParseError{Node: node, Raw: raw, Err: err}
}

// AsSchemaParse extracts a SchemaParseError from err, if present.
func AsSchemaParse(err error) (*SchemaParseError, bool) {
	var se *SchemaParseError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Is, As and New re-export the stdlib helpers so callers only import one
// errors package.
func Is(err, target error) bool    { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
func New(text string) error        { return errors.New(text) }
