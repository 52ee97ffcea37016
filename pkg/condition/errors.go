package condition

import (
	"fmt"
)

type CompilationError struct {
	Rule       string
	Expression string
	Cause      error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("failed to compile expression on rule '%s': %v", e.Rule, e.Cause)
}

func (e *CompilationError) Unwrap() error {
	return e.Cause
}

type EvaluationError struct {
	Rule  string
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate entity rule '%s': %v", e.Rule, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
