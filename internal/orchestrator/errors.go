package orchestrator

import (
	"errors"
	"fmt"
)

// Workflow error kinds.
const (
	KindUsage           = "usage"
	KindNotFound        = "not_found"
	KindParse           = "parse"
	KindEmptyRegistry   = "empty_registry"
	KindExternalCommand = "external_command"
)

// WorkflowError represents a failure in one step of the run workflow.
type WorkflowError struct {
	Kind    string
	Step    string // workflow step that failed ("create", "play", ...)
	Message string
	// ExitCode is the exit status of the failing external command, and the
	// recommended process exit code for every other kind.
	ExitCode int
	Err      error
}

func (e *WorkflowError) Error() string {
	msg := e.Message
	if e.Step != "" {
		msg = fmt.Sprintf("%s: %s", e.Step, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("orchestrator: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("orchestrator: %s", msg)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewUsageError reports a missing or malformed scenario selector.
func NewUsageError(message string) *WorkflowError {
	return &WorkflowError{Kind: KindUsage, Message: message, ExitCode: 1}
}

// NewNotFoundError reports a missing scenario directory or registry file.
func NewNotFoundError(message string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindNotFound, Message: message, ExitCode: 1, Err: err}
}

// NewParseError reports a registry that is not a valid JSON object.
func NewParseError(message string, err error) *WorkflowError {
	return &WorkflowError{Kind: KindParse, Message: message, ExitCode: 1, Err: err}
}

// NewEmptyRegistryError reports a registry with no recorded games.
func NewEmptyRegistryError(message string) *WorkflowError {
	return &WorkflowError{Kind: KindEmptyRegistry, Message: message, ExitCode: 1}
}

// NewExternalCommandError reports a non-zero exit from the create or play
// command. The exit code is propagated, falling back to 1 when the process
// never ran.
func NewExternalCommandError(step string, exitCode int, err error) *WorkflowError {
	if exitCode <= 0 {
		exitCode = 1
	}
	return &WorkflowError{
		Kind:     KindExternalCommand,
		Step:     step,
		Message:  "external command failed",
		ExitCode: exitCode,
		Err:      err,
	}
}

func isKind(err error, kind string) bool {
	var we *WorkflowError
	return errors.As(err, &we) && we.Kind == kind
}

// IsUsageError returns true if the error is a missing-selector error.
func IsUsageError(err error) bool { return isKind(err, KindUsage) }

// IsNotFoundError returns true if a scenario directory or registry file was missing.
func IsNotFoundError(err error) bool { return isKind(err, KindNotFound) }

// IsParseError returns true if the registry could not be parsed as a JSON object.
func IsParseError(err error) bool { return isKind(err, KindParse) }

// IsEmptyRegistryError returns true if the registry held no games.
func IsEmptyRegistryError(err error) bool { return isKind(err, KindEmptyRegistry) }

// IsExternalCommandError returns true if the create or play command exited non-zero.
func IsExternalCommandError(err error) bool { return isKind(err, KindExternalCommand) }

// ExitCode extracts the recommended process exit code from a workflow
// error, defaulting to 1 for errors outside the taxonomy.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var we *WorkflowError
	if errors.As(err, &we) && we.ExitCode > 0 {
		return we.ExitCode
	}
	return 1
}
