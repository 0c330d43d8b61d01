package engine

import (
	"errors"
	"fmt"
)

// ContractError reports a defect in plan construction or execution wiring:
// duplicate intent IDs, dependencies on unknown intents, cycles, payloads
// referencing identifiers that were never bound. It always indicates a bug
// or an invalid topology, never an API failure.
type ContractError struct {
	Message string
	Err     error
}

// NewContractError creates a contract error with a formatted message.
func NewContractError(format string, args ...any) *ContractError {
	return &ContractError{Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Err != nil {
		return "contract violation: " + e.Message + ": " + e.Err.Error()
	}
	return "contract violation: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ContractError) Unwrap() error {
	return e.Err
}

// IsContract returns true if the error is a contract violation.
func IsContract(err error) bool {
	var e *ContractError
	return errors.As(err, &e)
}
