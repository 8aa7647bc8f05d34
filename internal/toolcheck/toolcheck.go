// Package toolcheck reports whether command-line tools are available on the search path.
package toolcheck

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/temirov/cellrun/internal/execshell"
)

const (
	lookupCommandTemplateConstant      = "which %s"
	loggerNotConfiguredMessageConstant = "toolcheck: logger not configured"
	runnerNotConfiguredMessageConstant = "toolcheck: execution runner not configured"
	invalidToolNameTemplateConstant    = "toolcheck: invalid tool name %q"
	toolLookupMessageConstant          = "tool lookup completed"
	logFieldToolNameConstant           = "tool"
	logFieldInstalledConstant          = "installed"
	logFieldLookupExitCodeConstant     = "exit_code"
	unknownLookupExitCodeConstant      = -1
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

var (
	// ErrLoggerNotConfigured indicates a nil logger was supplied.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrRunnerNotConfigured indicates a nil execution runner was supplied.
	ErrRunnerNotConfigured = errors.New(runnerNotConfiguredMessageConstant)
)

// InvalidToolNameError reports a name that cannot be safely passed to the shell.
type InvalidToolNameError struct {
	ToolName string
}

// Error describes the invalid name.
func (nameError InvalidToolNameError) Error() string {
	return fmt.Sprintf(invalidToolNameTemplateConstant, nameError.ToolName)
}

// ExecutionRunner runs execution requests.
type ExecutionRunner interface {
	Execute(executionContext context.Context, request execshell.ExecutionRequest, sink execshell.Sink) (execshell.ExecutionOutcome, error)
}

// Checker looks tools up through the execution engine.
type Checker struct {
	logger *zap.Logger
	runner ExecutionRunner
}

// NewChecker validates dependencies and constructs a Checker.
func NewChecker(logger *zap.Logger, runner ExecutionRunner) (*Checker, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrRunnerNotConfigured
	}
	return &Checker{logger: logger, runner: runner}, nil
}

// IsInstalled runs `which <toolName>` and reports whether it exited with code 0.
func (checker *Checker) IsInstalled(executionContext context.Context, toolName string) (bool, error) {
	if !toolNamePattern.MatchString(toolName) {
		return false, InvalidToolNameError{ToolName: toolName}
	}

	discardSink := execshell.SinkFunc(func([]execshell.RenderableItem) error { return nil })
	outcome, executionError := checker.runner.Execute(executionContext, execshell.ExecutionRequest{
		Command: fmt.Sprintf(lookupCommandTemplateConstant, toolName),
	}, discardSink)
	if executionError != nil {
		return false, executionError
	}

	installed := outcome.Success
	checker.logger.Debug(
		toolLookupMessageConstant,
		zap.String(logFieldToolNameConstant, toolName),
		zap.Bool(logFieldInstalledConstant, installed),
		zap.Int(logFieldLookupExitCodeConstant, outcome.ExitCodeValue(unknownLookupExitCodeConstant)),
	)
	return installed, nil
}
