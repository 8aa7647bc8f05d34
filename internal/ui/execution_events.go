package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/cellrun/internal/execshell"
)

// ConsoleExecutionEventLogger renders execution lifecycle events using a zap logger configured for human-readable output.
type ConsoleExecutionEventLogger struct {
	logger    *zap.Logger
	formatter execshell.ExecutionMessageFormatter
}

// NewConsoleExecutionEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleExecutionEventLogger(logger *zap.Logger) *ConsoleExecutionEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleExecutionEventLogger{logger: logger, formatter: execshell.ExecutionMessageFormatter{}}
}

// ExecutionStarted implements execshell.ExecutionEventObserver.
func (eventLogger *ConsoleExecutionEventLogger) ExecutionStarted(request execshell.ExecutionRequest, processID int) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(request, processID))
}

// ExecutionCompleted implements execshell.ExecutionEventObserver. Failures and cancellations log at warn level.
func (eventLogger *ConsoleExecutionEventLogger) ExecutionCompleted(request execshell.ExecutionRequest, outcome execshell.ExecutionOutcome) {
	if eventLogger == nil {
		return
	}
	message := eventLogger.formatter.BuildCompletedMessage(request, outcome)
	if outcome.Success {
		eventLogger.logger.Info(message)
		return
	}
	eventLogger.logger.Warn(message)
}

// ExecutionSpawnFailed implements execshell.ExecutionEventObserver.
func (eventLogger *ConsoleExecutionEventLogger) ExecutionSpawnFailed(request execshell.ExecutionRequest, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildSpawnFailedMessage(request, failure))
}
