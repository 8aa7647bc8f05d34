package execution

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cellrun/internal/execshell"
	"github.com/temirov/cellrun/internal/ui"
)

const (
	encoderCreationErrorTemplateConstant     = "unable to construct output encoder: %w"
	coordinatorCreationErrorTemplateConstant = "unable to construct execution coordinator: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the execution configuration.
type ConfigurationProvider func() CommandConfiguration

type engineDependencies struct {
	logger               *zap.Logger
	configuration        CommandConfiguration
	spawner              execshell.ProcessSpawner
	humanReadableLogging bool
}

func buildCoordinator(dependencies engineDependencies) (*execshell.ExecutionCoordinator, error) {
	detectors := []execshell.Detector{execshell.NewVercelDetector()}
	encoder, encoderError := execshell.NewOutputEncoder(dependencies.logger, execshell.OutputEncoderOptions{
		NativeMimeTypes: dependencies.configuration.NativeMimeTypes,
		Detectors:       detectors,
	})
	if encoderError != nil {
		return nil, fmt.Errorf(encoderCreationErrorTemplateConstant, encoderError)
	}

	spawner := dependencies.spawner
	if spawner == nil {
		spawner = execshell.NewOSProcessSpawner(execshell.OSProcessSpawnerOptions{
			Shell:          dependencies.configuration.Shell,
			ShellArguments: dependencies.configuration.ShellArguments,
			WaitDelay:      dependencies.configuration.WaitDelay,
		})
	}

	var observer execshell.ExecutionEventObserver
	if dependencies.humanReadableLogging {
		observer = ui.NewConsoleExecutionEventLogger(dependencies.logger)
	}

	coordinator, coordinatorError := execshell.NewExecutionCoordinator(dependencies.logger, spawner, encoder, execshell.ExecutionCoordinatorOptions{
		TerminationGracePeriod: dependencies.configuration.TerminationGracePeriod,
		Observer:               observer,
	})
	if coordinatorError != nil {
		return nil, fmt.Errorf(coordinatorCreationErrorTemplateConstant, coordinatorError)
	}
	return coordinator, nil
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveConfiguration(provider ConfigurationProvider) CommandConfiguration {
	if provider == nil {
		return DefaultCommandConfiguration()
	}
	return provider().Sanitize()
}

func resolveHumanReadableLogging(provider func() bool) bool {
	if provider == nil {
		return false
	}
	return provider()
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}
