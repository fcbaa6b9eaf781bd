package expr

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingVariable indicates a variable absent from the context bag.
	ErrMissingVariable = errors.New("missing variable")
	// ErrTypeMismatch indicates a value could not convert to the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnsupported indicates an operation that is not defined for its operands.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrMissingEnv indicates evaluation was attempted without an environment.
	ErrMissingEnv = errors.New("evaluation environment is required")
	// ErrOutOfRange indicates a result that does not fit an integer, or a
	// float that is not finite.
	ErrOutOfRange = errors.New("value out of range")
)

// EvaluationError reports the operation that failed and why. Composite
// expressions return the first operand failure unchanged.
type EvaluationError struct {
	Op     Op
	Detail string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("evaluate %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("evaluate %s %s: %v", e.Op, e.Detail, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func fail(op Op, detail string, err error) error {
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}
	return &EvaluationError{Op: op, Detail: detail, Err: err}
}
