package document

import (
	"errors"
	"fmt"
)

// TemplateLoadError means the form template could not be fetched or opened.
// Nothing can be written without it.
type TemplateLoadError struct {
	Err error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("failed to load template: %v", e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// FontLoadError means the script font could not be fetched or parsed.
type FontLoadError struct {
	Err error
}

func (e *FontLoadError) Error() string {
	return fmt.Sprintf("failed to load font: %v", e.Err)
}

func (e *FontLoadError) Unwrap() error { return e.Err }

// FieldWriteError records a single failed field write. Row is 1-based for
// line item slots and 0 for document-level fields.
type FieldWriteError struct {
	Field string
	Row   int
	Err   error
}

func (e *FieldWriteError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("failed to write field %s (row %d): %v", e.Field, e.Row, e.Err)
	}
	return fmt.Sprintf("failed to write field %s: %v", e.Field, e.Err)
}

func (e *FieldWriteError) Unwrap() error { return e.Err }

var (
	ErrUnknownField      = errors.New("field not present in template")
	ErrMultilineRejected = errors.New("field does not accept multi-paragraph text")
	ErrAlreadyFinalized  = errors.New("form already flattened")
)

// IsFatal reports whether err aborts document generation entirely.
func IsFatal(err error) bool {
	var templateErr *TemplateLoadError
	var fontErr *FontLoadError
	return errors.As(err, &templateErr) || errors.As(err, &fontErr)
}
