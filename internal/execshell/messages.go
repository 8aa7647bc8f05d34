package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant         = "Running %s (pid %d)"
	succeededMessageTemplateConstant       = "Completed %s"
	failedMessageTemplateConstant          = "%s failed with exit code %s"
	cancelledMessageTemplateConstant       = "Cancelled %s"
	spawnFailedMessageTemplateConstant     = "%s could not start: %s"
	commandLabelTemplateConstant           = "%q%s"
	workingDirectorySuffixTemplateConstant = " (in %s)"
	namedCommandLabelTemplateConstant      = "%s %s"
	unknownFailureMessageConstant          = "unknown error"
	emptyStringConstant                    = ""
	commandLabelMaximumLengthConstant      = 80
	commandLabelTruncationSuffixConstant   = "..."
	commandLabelLineSeparatorConstant      = "\n"
	commandLabelLineSeparatorReplacement   = "; "
)

// ExecutionMessageFormatter builds human-readable messages for execution lifecycle events.
type ExecutionMessageFormatter struct{}

// BuildStartedMessage formats the message describing a running process.
func (formatter ExecutionMessageFormatter) BuildStartedMessage(request ExecutionRequest, processID int) string {
	return fmt.Sprintf(startedMessageTemplateConstant, formatter.formatCommandLabel(request), processID)
}

// BuildCompletedMessage formats the message describing a resolved outcome.
func (formatter ExecutionMessageFormatter) BuildCompletedMessage(request ExecutionRequest, outcome ExecutionOutcome) string {
	commandLabel := formatter.formatCommandLabel(request)
	switch {
	case outcome.WasCancelled:
		return fmt.Sprintf(cancelledMessageTemplateConstant, commandLabel)
	case outcome.Success:
		return fmt.Sprintf(succeededMessageTemplateConstant, commandLabel)
	default:
		return fmt.Sprintf(failedMessageTemplateConstant, commandLabel, outcome.describeExitCode())
	}
}

// BuildSpawnFailedMessage formats the message describing a process that never started.
func (formatter ExecutionMessageFormatter) BuildSpawnFailedMessage(request ExecutionRequest, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(spawnFailedMessageTemplateConstant, formatter.formatCommandLabel(request), failureMessage)
}

func (formatter ExecutionMessageFormatter) formatCommandLabel(request ExecutionRequest) string {
	commandText := strings.TrimSpace(strings.ReplaceAll(request.Command, commandLabelLineSeparatorConstant, commandLabelLineSeparatorReplacement))
	if len(commandText) > commandLabelMaximumLengthConstant {
		commandText = commandText[:commandLabelMaximumLengthConstant] + commandLabelTruncationSuffixConstant
	}

	commandLabel := fmt.Sprintf(commandLabelTemplateConstant, commandText, formatter.formatWorkingDirectorySuffix(request))
	trimmedName := strings.TrimSpace(request.Metadata.Name)
	if len(trimmedName) == 0 {
		return commandLabel
	}
	return fmt.Sprintf(namedCommandLabelTemplateConstant, trimmedName, commandLabel)
}

func (formatter ExecutionMessageFormatter) formatWorkingDirectorySuffix(request ExecutionRequest) string {
	trimmedWorkingDirectory := strings.TrimSpace(request.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}
