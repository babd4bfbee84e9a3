package submission

import (
	"errors"
	"fmt"

	"github.com/jogardn/saleco-docs/internal/document"
)

// RecordCreationError means the order record could not be created. Nothing
// after it runs.
type RecordCreationError struct {
	Err error
}

func (e *RecordCreationError) Error() string {
	return fmt.Sprintf("failed to create order record: %v", e.Err)
}

func (e *RecordCreationError) Unwrap() error { return e.Err }

// PersistenceError means the rendered artifact could not be uploaded.
type PersistenceError struct {
	DocumentID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist document %s: %v", e.DocumentID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError means one notification channel could not be reached.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("failed to notify %s: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrItemsUnavailable  = errors.New("allocated items unavailable")
)

// IsFatal reports whether err aborts the operation that produced it.
func IsFatal(err error) bool {
	var recordErr *RecordCreationError
	return errors.As(err, &recordErr) || document.IsFatal(err)
}
