package utils

import (
	"context"

	"github.com/temirov/cellrun/internal/execshell"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	cancellationTokenContextKeyConstant     = commandContextKey("cancellationToken")
)

type commandContextKey string

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath extracts the configuration file path from the provided context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, configurationFilePathAvailable := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	return configurationFilePath, configurationFilePathAvailable
}

// WithCancellationToken attaches the token that interrupts the command's execution.
func (accessor CommandContextAccessor) WithCancellationToken(parentContext context.Context, token *execshell.CancellationToken) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, cancellationTokenContextKeyConstant, token)
}

// CancellationToken extracts the execution cancellation token from the provided context.
func (accessor CommandContextAccessor) CancellationToken(executionContext context.Context) (*execshell.CancellationToken, bool) {
	if executionContext == nil {
		return nil, false
	}
	token, tokenAvailable := executionContext.Value(cancellationTokenContextKeyConstant).(*execshell.CancellationToken)
	return token, tokenAvailable && token != nil
}
