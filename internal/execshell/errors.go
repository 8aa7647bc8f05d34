package execshell

import (
	"errors"
	"fmt"
)

const (
	loggerNotConfiguredMessageConstant         = "execshell: logger not configured"
	processSpawnerNotConfiguredMessageConstant = "execshell: process spawner not configured"
	outputEncoderNotConfiguredMessageConstant  = "execshell: output encoder not configured"
	commandRequiredMessageConstant             = "execshell: command required"
	sinkNotConfiguredMessageConstant           = "execshell: sink not configured"
	observerAlreadyRegisteredMessageConstant   = "execshell: cancellation observer already registered"
	detectorRequiredMessageConstant            = "execshell: detector required"
	spawnErrorTemplateConstant                 = "unable to start %q: %v"
)

var (
	// ErrLoggerNotConfigured indicates a nil logger was supplied to a constructor.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrProcessSpawnerNotConfigured indicates a nil ProcessSpawner was supplied.
	ErrProcessSpawnerNotConfigured = errors.New(processSpawnerNotConfiguredMessageConstant)
	// ErrOutputEncoderNotConfigured indicates a nil OutputEncoder was supplied.
	ErrOutputEncoderNotConfigured = errors.New(outputEncoderNotConfiguredMessageConstant)
	// ErrCommandRequired indicates an ExecutionRequest without a command.
	ErrCommandRequired = errors.New(commandRequiredMessageConstant)
	// ErrSinkNotConfigured indicates Execute was called without a Sink.
	ErrSinkNotConfigured = errors.New(sinkNotConfiguredMessageConstant)
	// ErrCancellationObserverRegistered indicates a second OnCancel registration.
	ErrCancellationObserverRegistered = errors.New(observerAlreadyRegisteredMessageConstant)
	// ErrDetectorRequired indicates a nil Detector registration.
	ErrDetectorRequired = errors.New(detectorRequiredMessageConstant)
)

// SpawnError reports that the operating system process could not be created.
type SpawnError struct {
	Command string
	Cause   error
}

// Error describes the spawn failure.
func (spawnError SpawnError) Error() string {
	return fmt.Sprintf(spawnErrorTemplateConstant, spawnError.Command, spawnError.Cause)
}

// Unwrap exposes the underlying cause.
func (spawnError SpawnError) Unwrap() error {
	return spawnError.Cause
}
