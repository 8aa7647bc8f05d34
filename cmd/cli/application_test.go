package cli_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/cellrun/cmd/cli"
	"github.com/temirov/cellrun/cmd/cli/execution"
)

const (
	testConfigurationFileNameConstant = "config.yaml"
	testConfigurationContentConstant  = "common:\n  log_level: warn\n  log_format: console\nexecution:\n  shell: /bin/sh\n  shell_arguments: [\"-c\"]\n  default_mime_type: text/markdown\n  native_mime_types: text/plain,text/markdown\n  wait_delay: 5s\n"
	testGracePeriodEnvironmentName    = "CELLRUN_EXECUTION_TERMINATION_GRACE_PERIOD"
	testHelpUsagePrefixConstant       = "Usage:"
	testHelpDescriptionSnippet        = "cellrun runs shell commands"
	testLoggerErrorSnippet            = "unable to create logger"
	testInvalidChoiceSnippet          = "choose one of debug, info, warn, error"
)

func requirePosixShell(testInstance *testing.T) {
	testInstance.Helper()
	if runtime.GOOS == "windows" {
		testInstance.Skip("requires a POSIX shell")
	}
}

func newIsolatedApplication(testInstance *testing.T) (*cli.Application, *bytes.Buffer) {
	testInstance.Helper()
	testInstance.Setenv("HOME", testInstance.TempDir())

	application := cli.NewApplication()
	outputBuffer := &bytes.Buffer{}
	application.SetOutput(outputBuffer, &bytes.Buffer{})
	return application, outputBuffer
}

func TestApplicationConfigurationPrecedence(testInstance *testing.T) {
	requirePosixShell(testInstance)

	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationContentConstant), 0o600))

	testCases := []struct {
		name                string
		arguments           []string
		environmentGrace    string
		expectedLogLevel    string
		expectedLogFormat   string
		expectedExecution   execution.CommandConfiguration
		expectedGracePeriod time.Duration
	}{
		{
			name:              "embedded_defaults",
			arguments:         []string{"exec", "true"},
			expectedLogLevel:  "info",
			expectedLogFormat: "structured",
			expectedExecution: execution.CommandConfiguration{
				DefaultMimeType: "text/plain",
				WaitDelay:       2 * time.Second,
			},
		},
		{
			name:              "configuration_file",
			arguments:         []string{"--config", configurationPath, "exec", "true"},
			expectedLogLevel:  "warn",
			expectedLogFormat: "console",
			expectedExecution: execution.CommandConfiguration{
				Shell:           "/bin/sh",
				ShellArguments:  []string{"-c"},
				DefaultMimeType: "text/markdown",
				NativeMimeTypes: []string{"text/plain", "text/markdown"},
				WaitDelay:       5 * time.Second,
			},
		},
		{
			name:                "flags_and_environment_override",
			arguments:           []string{"--config", configurationPath, "--log-level", "ERROR", "--log-format", "structured", "exec", "true"},
			environmentGrace:    "3s",
			expectedLogLevel:    "error",
			expectedLogFormat:   "structured",
			expectedGracePeriod: 3 * time.Second,
			expectedExecution: execution.CommandConfiguration{
				Shell:           "/bin/sh",
				ShellArguments:  []string{"-c"},
				DefaultMimeType: "text/markdown",
				NativeMimeTypes: []string{"text/plain", "text/markdown"},
				WaitDelay:       5 * time.Second,
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			if len(testCase.environmentGrace) > 0 {
				testInstance.Setenv(testGracePeriodEnvironmentName, testCase.environmentGrace)
			}
			application, _ := newIsolatedApplication(testInstance)

			require.NoError(testInstance, application.ExecuteArguments(context.Background(), testCase.arguments))

			configuration := application.Configuration()
			require.Equal(testInstance, testCase.expectedLogLevel, configuration.Common.LogLevel)
			require.Equal(testInstance, testCase.expectedLogFormat, configuration.Common.LogFormat)
			require.Equal(testInstance, testCase.expectedGracePeriod, configuration.Execution.TerminationGracePeriod)
			require.Equal(testInstance, testCase.expectedExecution.Shell, configuration.Execution.Shell)
			require.Equal(testInstance, testCase.expectedExecution.DefaultMimeType, configuration.Execution.DefaultMimeType)
			require.Equal(testInstance, testCase.expectedExecution.WaitDelay, configuration.Execution.WaitDelay)
			if len(testCase.expectedExecution.ShellArguments) > 0 {
				require.Equal(testInstance, testCase.expectedExecution.ShellArguments, configuration.Execution.ShellArguments)
			}
			if len(testCase.expectedExecution.NativeMimeTypes) > 0 {
				require.Equal(testInstance, testCase.expectedExecution.NativeMimeTypes, configuration.Execution.NativeMimeTypes)
			}
		})
	}
}

func TestApplicationRunsExecCommand(testInstance *testing.T) {
	requirePosixShell(testInstance)

	application, outputBuffer := newIsolatedApplication(testInstance)

	require.NoError(testInstance, application.ExecuteArguments(context.Background(), []string{"--log-level", "error", "exec", "printf", "cellrun"}))
	require.Equal(testInstance, "cellrun", outputBuffer.String())
}

func TestApplicationReportsExitCodes(testInstance *testing.T) {
	requirePosixShell(testInstance)

	application, _ := newIsolatedApplication(testInstance)

	executionError := application.ExecuteArguments(context.Background(), []string{"--log-level", "error", "exec", "--", "exit 4"})

	var exitCodeError execution.ExitCodeError
	require.ErrorAs(testInstance, executionError, &exitCodeError)
	require.Equal(testInstance, 4, exitCodeError.ExitCode)
}

func TestApplicationRejectsUnsupportedLogLevel(testInstance *testing.T) {
	configurationPath := filepath.Join(testInstance.TempDir(), testConfigurationFileNameConstant)
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte("common:\n  log_level: verbose\n"), 0o600))

	testCases := []struct {
		name                 string
		arguments            []string
		expectedErrorSnippet string
	}{
		{
			name:                 "flag_value",
			arguments:            []string{"--log-level", "verbose", "exec", "true"},
			expectedErrorSnippet: testInvalidChoiceSnippet,
		},
		{
			name:                 "configuration_value",
			arguments:            []string{"--config", configurationPath, "exec", "true"},
			expectedErrorSnippet: testLoggerErrorSnippet,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			application, _ := newIsolatedApplication(testInstance)

			executionError := application.ExecuteArguments(context.Background(), testCase.arguments)

			require.Error(testInstance, executionError)
			require.Contains(testInstance, executionError.Error(), testCase.expectedErrorSnippet)
		})
	}
}

func TestApplicationRootCommandShowsHelp(testInstance *testing.T) {
	application, outputBuffer := newIsolatedApplication(testInstance)

	require.NoError(testInstance, application.ExecuteArguments(context.Background(), nil))

	require.Contains(testInstance, outputBuffer.String(), testHelpUsagePrefixConstant)
	require.Contains(testInstance, outputBuffer.String(), testHelpDescriptionSnippet)
	require.Contains(testInstance, outputBuffer.String(), "check-tool")
	require.Contains(testInstance, outputBuffer.String(), "records")
	require.Contains(testInstance, outputBuffer.String(), "<debug|INFO|warn|error>")
}

func TestEmbeddedDefaultConfigurationDecodes(testInstance *testing.T) {
	configurationContent, configurationType := cli.EmbeddedDefaultConfiguration()
	require.Equal(testInstance, "yaml", configurationType)

	var decoded map[string]any
	require.NoError(testInstance, yaml.Unmarshal(configurationContent, &decoded))
	require.Contains(testInstance, decoded, "common")
	require.Contains(testInstance, decoded, "execution")

	configurationContent[0] = '#'
	freshContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEqual(testInstance, byte('#'), freshContent[0])
}
