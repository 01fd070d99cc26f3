package core

import "fmt"

// ValidationError represents a row-scoped validation failure.
type ValidationError struct {
	Field   string // Field/column name, empty for whole-row problems
	Value   string // The offending value
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// errNoIdentity is returned by classification when no descriptor cell carries
// any identifying information.
func errNoIdentity() *ValidationError {
	return &ValidationError{Message: "no identifying information"}
}
