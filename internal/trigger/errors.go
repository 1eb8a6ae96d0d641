package trigger

import (
	"errors"
	"fmt"
)

// DecodeErrorCode categorizes command decoding failures.
type DecodeErrorCode string

const (
	// ErrCodeUnknownAction indicates the action is not one of the known commands.
	ErrCodeUnknownAction DecodeErrorCode = "UNKNOWN_ACTION"

	// ErrCodeInvalidPayload indicates the data object has the wrong shape.
	ErrCodeInvalidPayload DecodeErrorCode = "INVALID_PAYLOAD"

	// ErrCodeMissingField indicates a required payload key is absent or empty.
	ErrCodeMissingField DecodeErrorCode = "MISSING_FIELD"
)

// DecodeError reports why a record could not become a Command.
type DecodeError struct {
	Code    DecodeErrorCode
	Action  string
	Field   string // empty unless the failure concerns one payload key
	Message string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (action=%s, field=%s)", e.Code, e.Message, e.Action, e.Field)
	}
	return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
}

// IsUnknownAction reports whether err is an unknown action decode failure.
// Uses errors.As to handle wrapped errors.
func IsUnknownAction(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code == ErrCodeUnknownAction
	}
	return false
}

func missingField(action Action, field string) *DecodeError {
	return &DecodeError{
		Code:    ErrCodeMissingField,
		Action:  string(action),
		Field:   field,
		Message: "required field is missing or empty",
	}
}
