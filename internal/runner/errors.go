package runner

import (
	"errors"
	"fmt"
	"time"
)

// UnknownCommandError reports a command token that matched no known
// command, recipe, or delegation pattern.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command: %s", e.Command)
}

// MissingCollaboratorError reports an absent external dependency: the docs
// sub-build directory, its recipes fragment, or a required interpreter.
type MissingCollaboratorError struct {
	Kind string // "docs directory", "recipes fragment", "interpreter"
	Path string
}

func (e *MissingCollaboratorError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

// StepError reports a recipe step that exited non-zero. The child's exit
// code is propagated verbatim to the caller.
type StepError struct {
	Recipe   string
	Step     string
	ExitCode int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("recipe %q: step %q exited with code %d", e.Recipe, e.Step, e.ExitCode)
}

// TimeoutError reports a recipe that exceeded its execution deadline.
type TimeoutError struct {
	Recipe  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("recipe %q timed out after %v", e.Recipe, e.Timeout)
}

// ExitCode maps an execution error to a process exit code. Step failures
// keep the child's code; everything else is a generic failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.ExitCode
	}
	return 1
}
