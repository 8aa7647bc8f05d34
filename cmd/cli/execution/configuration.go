package execution

import (
	"strings"
	"time"

	"github.com/temirov/cellrun/internal/execshell"
)

const (
	defaultRecordsDirectoryConstant = "~/.cellrun/records"
	shellConfigurationKeyConstant   = "shell"
	shellArgumentsKeyConstant       = "shell_arguments"
	defaultMimeTypeKeyConstant      = "default_mime_type"
	nativeMimeTypesKeyConstant      = "native_mime_types"
	gracePeriodKeyConstant          = "termination_grace_period"
	waitDelayKeyConstant            = "wait_delay"
	recordsDirectoryKeyConstant     = "records_directory"
	configurationKeySeparator       = "."
)

// CommandConfiguration captures the execution settings shared by exec and check-tool.
type CommandConfiguration struct {
	Shell                  string        `mapstructure:"shell"`
	ShellArguments         []string      `mapstructure:"shell_arguments"`
	DefaultMimeType        string        `mapstructure:"default_mime_type"`
	NativeMimeTypes        []string      `mapstructure:"native_mime_types"`
	TerminationGracePeriod time.Duration `mapstructure:"termination_grace_period"`
	WaitDelay              time.Duration `mapstructure:"wait_delay"`
	RecordsDirectory       string        `mapstructure:"records_directory"`
}

// DefaultCommandConfiguration provides the built-in execution settings. An empty
// shell selects the platform shell of the process spawner.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		DefaultMimeType:  execshell.DefaultMimeType,
		NativeMimeTypes:  append([]string{}, execshell.DefaultNativeMimeTypes...),
		WaitDelay:        execshell.DefaultWaitDelay,
		RecordsDirectory: defaultRecordsDirectoryConstant,
	}
}

// DefaultConfigurationValues returns viper defaults keyed under prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefixedKey(prefix, shellConfigurationKeyConstant): defaults.Shell,
		prefixedKey(prefix, shellArgumentsKeyConstant):     defaults.ShellArguments,
		prefixedKey(prefix, defaultMimeTypeKeyConstant):    defaults.DefaultMimeType,
		prefixedKey(prefix, nativeMimeTypesKeyConstant):    defaults.NativeMimeTypes,
		prefixedKey(prefix, gracePeriodKeyConstant):        defaults.TerminationGracePeriod.String(),
		prefixedKey(prefix, waitDelayKeyConstant):          defaults.WaitDelay.String(),
		prefixedKey(prefix, recordsDirectoryKeyConstant):   defaults.RecordsDirectory,
	}
}

// Sanitize trims values and restores defaults for blank or negative settings.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration

	sanitized.Shell = strings.TrimSpace(configuration.Shell)
	if len(sanitized.Shell) == 0 {
		sanitized.ShellArguments = nil
	} else {
		sanitized.ShellArguments = sanitizeList(configuration.ShellArguments)
	}

	sanitized.DefaultMimeType = strings.TrimSpace(configuration.DefaultMimeType)
	if len(sanitized.DefaultMimeType) == 0 {
		sanitized.DefaultMimeType = defaults.DefaultMimeType
	}

	sanitized.NativeMimeTypes = sanitizeList(configuration.NativeMimeTypes)
	if len(sanitized.NativeMimeTypes) == 0 {
		sanitized.NativeMimeTypes = defaults.NativeMimeTypes
	}

	if sanitized.TerminationGracePeriod < 0 {
		sanitized.TerminationGracePeriod = 0
	}
	if sanitized.WaitDelay <= 0 {
		sanitized.WaitDelay = defaults.WaitDelay
	}

	sanitized.RecordsDirectory = strings.TrimSpace(configuration.RecordsDirectory)
	if len(sanitized.RecordsDirectory) == 0 {
		sanitized.RecordsDirectory = defaults.RecordsDirectory
	}

	return sanitized
}

func sanitizeList(raw []string) []string {
	trimmed := make([]string, 0, len(raw))
	for _, candidate := range raw {
		value := strings.TrimSpace(candidate)
		if len(value) == 0 {
			continue
		}
		trimmed = append(trimmed, value)
	}
	return trimmed
}

func prefixedKey(prefix string, key string) string {
	trimmedPrefix := strings.TrimSpace(prefix)
	if len(trimmedPrefix) == 0 {
		return key
	}
	return trimmedPrefix + configurationKeySeparator + key
}
