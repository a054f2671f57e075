package ai

import (
	"errors"
	"fmt"
	"strings"
)

type OutputErrorKind string

const (
	// OutputMalformed means the response was empty or not a JSON object.
	OutputMalformed OutputErrorKind = "malformed"
	// OutputInvalid means the JSON did not satisfy the schema or could not be decoded into the record.
	OutputInvalid OutputErrorKind = "invalid"
)

// OutputError is the recoverable failure class of structured generation.
type OutputError struct {
	Kind     OutputErrorKind
	Schema   string
	Payload  string
	Problems []string
	Err      error
}

func (e *OutputError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s output", e.Kind, e.Schema)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Payload != "" {
		fmt.Fprintf(&b, " (payload: %s)", e.Payload)
	}
	return b.String()
}

func (e *OutputError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is worth another generation attempt.
func IsRecoverable(err error) bool {
	var oe *OutputError
	return errors.As(err, &oe)
}
