package normalizer

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMissingRequiredField matches every *MissingRequiredFieldError.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrMalformedTimestamp is returned when a date string does not follow the
	// platform layout. It is fatal only for a record's own created_at.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// MissingRequiredFieldError is returned when a raw post lacks one of the fields
// a record cannot exist without: its id, its author handle or its created_at.
// PostID holds whatever id could be read from the raw post and may be empty.
type MissingRequiredFieldError struct {
	Field  string
	PostID string
	Err    error
}

func (e *MissingRequiredFieldError) Error() string {
	msg := fmt.Sprintf("%s %s (post id: %q)", ErrMissingRequiredField, e.Field, e.PostID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingRequiredFieldError) Unwrap() error {
	return e.Err
}

func (e *MissingRequiredFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

func missingField(field, postID string, cause error) error {
	return &MissingRequiredFieldError{Field: field, PostID: postID, Err: cause}
}
