package execshell

// ExecutionEventObserver receives lifecycle notifications for command executions.
type ExecutionEventObserver interface {
	// ExecutionStarted notifies observers that the process is running.
	ExecutionStarted(request ExecutionRequest, processID int)
	// ExecutionCompleted notifies observers of the resolved outcome.
	ExecutionCompleted(request ExecutionRequest, outcome ExecutionOutcome)
	// ExecutionSpawnFailed reports that the process could not be created.
	ExecutionSpawnFailed(request ExecutionRequest, failure error)
}

// noopExecutionEventObserver discards all execution events.
type noopExecutionEventObserver struct{}

// ExecutionStarted implements ExecutionEventObserver for the no-op observer.
func (noopExecutionEventObserver) ExecutionStarted(ExecutionRequest, int) {}

// ExecutionCompleted implements ExecutionEventObserver for the no-op observer.
func (noopExecutionEventObserver) ExecutionCompleted(ExecutionRequest, ExecutionOutcome) {}

// ExecutionSpawnFailed implements ExecutionEventObserver for the no-op observer.
func (noopExecutionEventObserver) ExecutionSpawnFailed(ExecutionRequest, error) {}
