package execshell

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	processStartedMessageConstant       = "process started"
	processResolvedMessageConstant      = "execution resolved"
	spawnFailedMessageConstant          = "process could not be started"
	cancelledBeforeSpawnMessageConstant = "execution cancelled before start"
	streamReadFailedMessageConstant     = "output stream read failed"
	sinkReplaceFailedMessageConstant    = "sink rejected output"
	observerRegistrationMessageConstant = "cancellation token already observed; watching its done channel"
	logFieldCommandConstant             = "command"
	logFieldWorkingDirectoryConstant    = "working_directory"
	logFieldExitCodeConstant            = "exit_code"
	logFieldSuccessConstant             = "success"
	logFieldCancelledConstant           = "cancelled"
	logFieldStateConstant               = "state"
	logFieldOutputBytesConstant         = "output_bytes"
	logFieldChunkCountConstant          = "chunk_count"
	logFieldStandardErrorBytesConstant  = "stderr_bytes"
	logFieldStandardOutputBytesConstant = "stdout_bytes"
)

// ItemEncoder packages an accumulated buffer into a renderable item.
type ItemEncoder interface {
	Encode(buffer []byte, command string, metadata ExecutionMetadata) RenderableItem
}

// ExecutionCoordinatorOptions configures optional coordinator behavior.
type ExecutionCoordinatorOptions struct {
	// TerminationGracePeriod is how long a cancelled process may take to exit after the hang-up before it is killed.
	TerminationGracePeriod time.Duration
	Observer               ExecutionEventObserver
}

// ExecutionCoordinator runs ExecutionRequests: spawn, stream, aggregate, encode, and resolve.
type ExecutionCoordinator struct {
	logger                 *zap.Logger
	spawner                ProcessSpawner
	encoder                ItemEncoder
	observer               ExecutionEventObserver
	terminationGracePeriod time.Duration
}

// NewExecutionCoordinator validates dependencies and constructs a coordinator.
func NewExecutionCoordinator(logger *zap.Logger, spawner ProcessSpawner, encoder ItemEncoder, options ExecutionCoordinatorOptions) (*ExecutionCoordinator, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if spawner == nil {
		return nil, ErrProcessSpawnerNotConfigured
	}
	if encoder == nil {
		return nil, ErrOutputEncoderNotConfigured
	}

	observer := options.Observer
	if observer == nil {
		observer = noopExecutionEventObserver{}
	}

	gracePeriod := options.TerminationGracePeriod
	if gracePeriod < 0 {
		gracePeriod = 0
	}

	return &ExecutionCoordinator{
		logger:                 logger,
		spawner:                spawner,
		encoder:                encoder,
		observer:               observer,
		terminationGracePeriod: gracePeriod,
	}, nil
}

// Execute runs the request to completion, replacing the sink contents on every output chunk.
// Only validation failures and SpawnError are returned as errors; every other condition is
// folded into the outcome. Cancelling executionContext behaves like cancelling the request token.
func (coordinator *ExecutionCoordinator) Execute(executionContext context.Context, request ExecutionRequest, sink Sink) (ExecutionOutcome, error) {
	if len(strings.TrimSpace(request.Command)) == 0 {
		return ExecutionOutcome{}, ErrCommandRequired
	}
	if sink == nil {
		return ExecutionOutcome{}, ErrSinkNotConfigured
	}
	if executionContext == nil {
		executionContext = context.Background()
	}

	if request.ProductionDeployment {
		request.Metadata.ProductionDeployment = true
	}

	token := request.CancellationToken
	if token == nil {
		token = NewCancellationToken()
	}

	run := &executionRun{
		coordinator: coordinator,
		request:     request,
		sink:        sink,
		token:       token,
		command:     request.EffectiveCommand(),
		chunks:      make(chan OutputChunk),
		detached:    make(chan struct{}),
		aggregator:  NewOutputAggregator(),
	}
	return run.execute(executionContext)
}

// executionRun holds the state of one Execute call. The aggregator is only touched by the run loop.
type executionRun struct {
	coordinator *ExecutionCoordinator
	request     ExecutionRequest
	sink        Sink
	token       *CancellationToken
	command     string
	state       atomic.Int32
	chunks      chan OutputChunk
	detached    chan struct{}
	aggregator  *OutputAggregator
	processID   int
}

func (run *executionRun) execute(executionContext context.Context) (ExecutionOutcome, error) {
	logger := run.coordinator.logger
	run.state.Store(int32(ExecutionStateSpawning))

	if run.token.IsCancelled() || executionContext.Err() != nil {
		logger.Debug(cancelledBeforeSpawnMessageConstant, zap.String(logFieldCommandConstant, run.command))
		return run.resolve(ExecutionStateCancelled, ProcessExit{ExitCode: -1}), nil
	}

	handle, spawnError := run.coordinator.spawner.Spawn(executionContext, ProcessSpecification{
		Command:          run.command,
		WorkingDirectory: run.request.WorkingDirectory,
		Environment:      run.request.Environment,
		StandardOutput:   &chunkWriter{source: OutputStreamStandardOutput, chunks: run.chunks, detached: run.detached},
		StandardError:    &chunkWriter{source: OutputStreamStandardError, chunks: run.chunks, detached: run.detached},
	})
	if spawnError != nil {
		var typedSpawnError SpawnError
		if !errors.As(spawnError, &typedSpawnError) {
			spawnError = SpawnError{Command: run.command, Cause: spawnError}
		}
		logger.Warn(spawnFailedMessageConstant, zap.String(logFieldCommandConstant, run.command), zap.Error(spawnError))
		run.state.Store(int32(ExecutionStateResolved))
		run.coordinator.observer.ExecutionSpawnFailed(run.request, spawnError)
		return ExecutionOutcome{TerminalEdge: ExecutionStateSpawning}, spawnError
	}

	run.processID = handle.ProcessID()
	run.state.Store(int32(ExecutionStateRunning))
	controller := newCancellationController(logger, handle, &run.state, run.detached)

	exited := make(chan ProcessExit, 1)
	go func() {
		exited <- handle.Wait()
	}()

	var tokenDone <-chan struct{}
	if registrationError := run.token.OnCancel(controller.fire); registrationError != nil {
		logger.Warn(observerRegistrationMessageConstant, zap.Error(registrationError))
		tokenDone = run.token.Done()
	}

	logger.Info(
		processStartedMessageConstant,
		zap.Int(logFieldProcessIDConstant, run.processID),
		zap.String(logFieldCommandConstant, run.command),
		zap.String(logFieldWorkingDirectoryConstant, run.request.WorkingDirectory),
	)
	run.coordinator.observer.ExecutionStarted(run.request, run.processID)

	contextDone := executionContext.Done()
	for {
		select {
		case chunk := <-run.chunks:
			controller.admit(func() {
				run.render(run.aggregator.Append(chunk))
			})
		case processExit := <-exited:
			if run.state.CompareAndSwap(int32(ExecutionStateRunning), int32(ExecutionStateExited)) {
				return run.resolve(ExecutionStateExited, processExit), nil
			}
			return run.resolve(ExecutionStateCancelled, processExit), nil
		case <-controller.detachedChannel():
			processExit := controller.escalate(exited, run.coordinator.terminationGracePeriod)
			return run.resolve(ExecutionStateCancelled, processExit), nil
		case <-contextDone:
			contextDone = nil
			controller.fire()
		case <-tokenDone:
			tokenDone = nil
			controller.fire()
		}
	}
}

func (run *executionRun) render(buffer []byte) {
	item := run.coordinator.encoder.Encode(buffer, run.command, run.request.Metadata)
	if replaceError := run.sink.Replace([]RenderableItem{item}); replaceError != nil {
		run.coordinator.logger.Warn(sinkReplaceFailedMessageConstant, zap.Int(logFieldProcessIDConstant, run.processID), zap.Error(replaceError))
	}
}

func (run *executionRun) resolve(terminalEdge ExecutionState, processExit ProcessExit) ExecutionOutcome {
	logger := run.coordinator.logger
	if processExit.StreamError != nil {
		logger.Warn(streamReadFailedMessageConstant, zap.Int(logFieldProcessIDConstant, run.processID), zap.Error(processExit.StreamError))
	}

	outcome := ExecutionOutcome{
		ProcessID:    run.processID,
		Output:       run.aggregator.Snapshot(),
		TerminalEdge: terminalEdge,
	}

	if terminalEdge == ExecutionStateExited {
		if !processExit.Signaled && processExit.ExitCode >= 0 {
			exitCode := processExit.ExitCode
			outcome.ExitCode = &exitCode
		}
		outcome.Success = outcome.ExitCode != nil && *outcome.ExitCode == 0
	} else {
		outcome.WasCancelled = true
	}

	run.state.Store(int32(ExecutionStateResolved))

	logger.Info(
		processResolvedMessageConstant,
		zap.Int(logFieldProcessIDConstant, run.processID),
		zap.String(logFieldCommandConstant, run.command),
		zap.String(logFieldStateConstant, terminalEdge.String()),
		zap.String(logFieldExitCodeConstant, outcome.describeExitCode()),
		zap.Bool(logFieldSuccessConstant, outcome.Success),
		zap.Bool(logFieldCancelledConstant, outcome.WasCancelled),
		zap.Int(logFieldOutputBytesConstant, len(outcome.Output)),
		zap.Int(logFieldChunkCountConstant, run.aggregator.ChunkCount()),
		zap.Int(logFieldStandardOutputBytesConstant, run.aggregator.StreamByteCount(OutputStreamStandardOutput)),
		zap.Int(logFieldStandardErrorBytesConstant, run.aggregator.StreamByteCount(OutputStreamStandardError)),
	)
	run.coordinator.observer.ExecutionCompleted(run.request, outcome)

	return outcome
}

// chunkWriter forwards each write to the run loop as an OutputChunk. Once the
// run is detached, writes are acknowledged and dropped so the process never blocks.
type chunkWriter struct {
	source   OutputStream
	chunks   chan<- OutputChunk
	detached <-chan struct{}
}

func (writer *chunkWriter) Write(data []byte) (int, error) {
	chunk := OutputChunk{Source: writer.source, Bytes: append([]byte(nil), data...)}
	select {
	case <-writer.detached:
		return len(data), nil
	default:
	}
	select {
	case writer.chunks <- chunk:
	case <-writer.detached:
	}
	return len(data), nil
}
