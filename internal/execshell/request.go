package execshell

import (
	"strconv"
	"strings"
)

const (
	// DefaultMimeType is used when an execution carries no mime annotation.
	DefaultMimeType = "text/plain"

	outputStreamStandardOutputConstant = "stdout"
	outputStreamStandardErrorConstant  = "stderr"
	executionStateSpawningConstant     = "spawning"
	executionStateRunningConstant      = "running"
	executionStateExitedConstant       = "exited"
	executionStateCancelledConstant    = "cancelled"
	executionStateResolvedConstant     = "resolved"
	executionStateUnknownConstant      = "unknown"
)

// OutputStream identifies the process stream a chunk was read from.
type OutputStream int

// Supported output streams.
const (
	OutputStreamStandardOutput OutputStream = iota
	OutputStreamStandardError
)

// String returns the conventional name of the stream.
func (stream OutputStream) String() string {
	if stream == OutputStreamStandardError {
		return outputStreamStandardErrorConstant
	}
	return outputStreamStandardOutputConstant
}

// OutputChunk is a unit of raw bytes read from one output stream.
type OutputChunk struct {
	Source OutputStream
	Bytes  []byte
}

// ExecutionMetadata carries caller annotations describing how output should be rendered.
type ExecutionMetadata struct {
	MimeType string
	ToolName string
	CellID   string
	Name     string
	Category string
	// ProductionDeployment marks output from a production deployment run.
	ProductionDeployment bool
}

// ResolvedMimeType returns the annotated mime type or DefaultMimeType.
func (metadata ExecutionMetadata) ResolvedMimeType() string {
	if len(metadata.MimeType) == 0 {
		return DefaultMimeType
	}
	return metadata.MimeType
}

// ExecutionRequest describes one command to run. It must not be mutated once execution starts.
type ExecutionRequest struct {
	Command           string
	WorkingDirectory  string
	Environment       map[string]string
	CancellationToken *CancellationToken
	Metadata          ExecutionMetadata
	// ProductionDeployment appends ProductionDeploymentArgument to the command.
	ProductionDeployment bool
}

// ExecutionState enumerates coordinator lifecycle states.
type ExecutionState int32

// Coordinator lifecycle states.
const (
	ExecutionStateSpawning ExecutionState = iota
	ExecutionStateRunning
	ExecutionStateExited
	ExecutionStateCancelled
	ExecutionStateResolved
)

// String returns a human-readable state name.
func (state ExecutionState) String() string {
	switch state {
	case ExecutionStateSpawning:
		return executionStateSpawningConstant
	case ExecutionStateRunning:
		return executionStateRunningConstant
	case ExecutionStateExited:
		return executionStateExitedConstant
	case ExecutionStateCancelled:
		return executionStateCancelledConstant
	case ExecutionStateResolved:
		return executionStateResolvedConstant
	default:
		return executionStateUnknownConstant
	}
}

// ExecutionOutcome is the terminal result of one execution.
type ExecutionOutcome struct {
	Success      bool
	ExitCode     *int
	WasCancelled bool
	ProcessID    int
	// Output holds the final aggregated buffer.
	Output []byte
	// TerminalEdge records which of ExecutionStateExited or ExecutionStateCancelled resolved the run.
	TerminalEdge ExecutionState
}

// ExitCodeValue returns the exit code or fallback when it is unknown.
func (outcome ExecutionOutcome) ExitCodeValue(fallback int) int {
	if outcome.ExitCode == nil {
		return fallback
	}
	return *outcome.ExitCode
}

// describeExitCode renders the exit code for log messages.
func (outcome ExecutionOutcome) describeExitCode() string {
	if outcome.ExitCode == nil {
		return executionStateUnknownConstant
	}
	return strconv.Itoa(*outcome.ExitCode)
}

// RenderableItem is one encoded output unit pushed to a Sink.
type RenderableItem struct {
	Mime string
	Data []byte
}

// Sink is a display surface; every Replace call fully replaces what is shown for the execution.
// Replace runs while cancellation of the same run is held off, so it must not
// cancel that run's token synchronously.
type Sink interface {
	Replace(items []RenderableItem) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(items []RenderableItem) error

// Replace implements Sink.
func (sinkFunction SinkFunc) Replace(items []RenderableItem) error {
	return sinkFunction(items)
}

// ProductionDeploymentArgument is appended to commands of requests flagged as production deployments.
const ProductionDeploymentArgument = "--prod"

const commandTrailingWhitespaceConstant = " \t\r\n"

// EffectiveCommand returns the command line handed to the shell.
func (request ExecutionRequest) EffectiveCommand() string {
	if !request.ProductionDeployment {
		return request.Command
	}
	return strings.TrimRight(request.Command, commandTrailingWhitespaceConstant) + " " + ProductionDeploymentArgument
}
