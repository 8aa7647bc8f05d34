package execshell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	environmentAssignmentSeparatorConstant = "="
	// DefaultWaitDelay bounds how long Wait keeps draining output after the process exits.
	DefaultWaitDelay = 2 * time.Second
)

// ProcessSpecification describes the process to create.
type ProcessSpecification struct {
	Command          string
	WorkingDirectory string
	Environment      map[string]string
	StandardOutput   io.Writer
	StandardError    io.Writer
}

// ProcessExit describes how a process ended.
type ProcessExit struct {
	// ExitCode is -1 when the process did not exit normally.
	ExitCode int
	Signaled bool
	// StreamError reports an output copy failure; the exit status is still valid.
	StreamError error
}

// ProcessHandle controls one live operating system process.
type ProcessHandle interface {
	ProcessID() int
	CloseInput() error
	// HangUp sends a hang-up signal to the process and its group.
	HangUp() error
	// Kill forcefully terminates the process.
	Kill() error
	// Wait blocks until the process exits and its output has been drained.
	Wait() ProcessExit
}

// ProcessSpawner starts operating system processes.
type ProcessSpawner interface {
	Spawn(executionContext context.Context, specification ProcessSpecification) (ProcessHandle, error)
}

// OSProcessSpawnerOptions configures OSProcessSpawner.
type OSProcessSpawnerOptions struct {
	Shell          string
	ShellArguments []string
	WaitDelay      time.Duration
}

// OSProcessSpawner interprets commands with a shell using os/exec.
type OSProcessSpawner struct {
	shell          string
	shellArguments []string
	waitDelay      time.Duration
}

// NewOSProcessSpawner constructs a spawner, filling unset options with platform defaults.
func NewOSProcessSpawner(options OSProcessSpawnerOptions) *OSProcessSpawner {
	shell := strings.TrimSpace(options.Shell)
	shellArguments := append([]string{}, options.ShellArguments...)
	if len(shell) == 0 {
		shell = defaultShellConstant
		if len(shellArguments) == 0 {
			shellArguments = append(shellArguments, defaultShellArguments...)
		}
	}

	waitDelay := options.WaitDelay
	if waitDelay <= 0 {
		waitDelay = DefaultWaitDelay
	}

	return &OSProcessSpawner{shell: shell, shellArguments: shellArguments, waitDelay: waitDelay}
}

// Spawn starts the command through the configured shell.
func (spawner *OSProcessSpawner) Spawn(executionContext context.Context, specification ProcessSpecification) (ProcessHandle, error) {
	if executionContext != nil {
		if contextError := executionContext.Err(); contextError != nil {
			return nil, SpawnError{Command: specification.Command, Cause: contextError}
		}
	}

	shellArguments := append(append([]string{}, spawner.shellArguments...), specification.Command)
	executable := exec.Command(spawner.shell, shellArguments...)

	if len(specification.WorkingDirectory) > 0 {
		executable.Dir = specification.WorkingDirectory
	}
	if len(specification.Environment) > 0 {
		executable.Env = MergeEnvironment(os.Environ(), specification.Environment)
	}

	executable.Stdout = specification.StandardOutput
	executable.Stderr = specification.StandardError
	executable.WaitDelay = spawner.waitDelay
	configureProcessGroup(executable)

	standardInput, pipeError := executable.StdinPipe()
	if pipeError != nil {
		return nil, SpawnError{Command: specification.Command, Cause: pipeError}
	}

	if startError := executable.Start(); startError != nil {
		return nil, SpawnError{Command: specification.Command, Cause: startError}
	}

	return &osProcessHandle{command: executable, standardInput: standardInput}, nil
}

// MergeEnvironment overlays overrides onto a KEY=VALUE environment; overrides win and the result is sorted.
func MergeEnvironment(baseEnvironment []string, overrides map[string]string) []string {
	mergedValues := make(map[string]string, len(baseEnvironment)+len(overrides))
	for _, assignment := range baseEnvironment {
		separatorIndex := strings.Index(assignment, environmentAssignmentSeparatorConstant)
		if separatorIndex <= 0 {
			continue
		}
		mergedValues[assignment[:separatorIndex]] = assignment[separatorIndex+1:]
	}
	for environmentKey, environmentValue := range overrides {
		mergedValues[environmentKey] = environmentValue
	}

	environmentKeys := make([]string, 0, len(mergedValues))
	for environmentKey := range mergedValues {
		environmentKeys = append(environmentKeys, environmentKey)
	}
	sort.Strings(environmentKeys)

	mergedEnvironment := make([]string, 0, len(environmentKeys))
	for _, environmentKey := range environmentKeys {
		mergedEnvironment = append(mergedEnvironment, environmentKey+environmentAssignmentSeparatorConstant+mergedValues[environmentKey])
	}
	return mergedEnvironment
}

type osProcessHandle struct {
	command         *exec.Cmd
	standardInput   io.WriteCloser
	closeInputOnce  sync.Once
	closeInputError error
}

func (handle *osProcessHandle) ProcessID() int {
	if handle.command.Process == nil {
		return 0
	}
	return handle.command.Process.Pid
}

func (handle *osProcessHandle) CloseInput() error {
	handle.closeInputOnce.Do(func() {
		handle.closeInputError = ignoreClosedError(handle.standardInput.Close())
	})
	return handle.closeInputError
}

func (handle *osProcessHandle) HangUp() error {
	return hangUpProcess(handle.command.Process)
}

func (handle *osProcessHandle) Kill() error {
	return killProcess(handle.command.Process)
}

func (handle *osProcessHandle) Wait() ProcessExit {
	waitError := handle.command.Wait()
	_ = handle.CloseInput()

	processExit := ProcessExit{ExitCode: -1}
	if processState := handle.command.ProcessState; processState != nil {
		processExit.ExitCode = processState.ExitCode()
		processExit.Signaled = !processState.Exited()
	}

	if waitError != nil {
		var exitError *exec.ExitError
		if !errors.As(waitError, &exitError) {
			processExit.StreamError = waitError
		}
	}
	return processExit
}

func ignoreClosedError(closeError error) error {
	if closeError == nil || errors.Is(closeError, os.ErrClosed) {
		return nil
	}
	return closeError
}

func ignoreProcessDone(signalError error) error {
	if signalError == nil || errors.Is(signalError, os.ErrProcessDone) {
		return nil
	}
	return signalError
}
