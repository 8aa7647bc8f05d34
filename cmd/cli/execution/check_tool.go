package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/cellrun/internal/toolcheck"
)

const (
	checkToolCommandUseConstant              = "check-tool <name>"
	checkToolCommandShortDescriptionConstant = "Report whether a tool is available on the search path"
	checkToolCommandLongDescriptionConstant  = "check-tool looks a tool up with `which` through the execution engine and exits non-zero when it is missing."
	toolNameRequiredMessageConstant          = "check-tool requires exactly one tool name"
	toolInstalledTemplateConstant            = "%s: installed\n"
	toolMissingTemplateConstant              = "%s: not installed\n"
	toolCheckErrorTemplateConstant           = "tool check failed: %w"
	toolNotInstalledTemplateConstant         = "tool %s is not installed"
)

var errToolNameRequired = errors.New(toolNameRequiredMessageConstant)

// ToolNotInstalledError reports a tool missing from the search path.
type ToolNotInstalledError struct {
	ToolName string
}

// Error describes the missing tool.
func (notInstalledError ToolNotInstalledError) Error() string {
	return fmt.Sprintf(toolNotInstalledTemplateConstant, notInstalledError.ToolName)
}

// ToolCheckCommandBuilder assembles the check-tool command.
type ToolCheckCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	Runner                toolcheck.ExecutionRunner
}

// Build constructs the check-tool command.
func (builder *ToolCheckCommandBuilder) Build() (*cobra.Command, error) {
	return &cobra.Command{
		Use:          checkToolCommandUseConstant,
		Short:        checkToolCommandShortDescriptionConstant,
		Long:         checkToolCommandLongDescriptionConstant,
		RunE:         builder.run,
		SilenceUsage: true,
	}, nil
}

func (builder *ToolCheckCommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 || len(strings.TrimSpace(arguments[0])) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errToolNameRequired
	}
	toolName := strings.TrimSpace(arguments[0])

	logger := resolveLogger(builder.LoggerProvider)
	runner := builder.Runner
	if runner == nil {
		coordinator, coordinatorError := buildCoordinator(engineDependencies{
			logger:        logger,
			configuration: resolveConfiguration(builder.ConfigurationProvider),
		})
		if coordinatorError != nil {
			return coordinatorError
		}
		runner = coordinator
	}

	checker, checkerError := toolcheck.NewChecker(logger, runner)
	if checkerError != nil {
		return fmt.Errorf(toolCheckErrorTemplateConstant, checkerError)
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}

	installed, lookupError := checker.IsInstalled(executionContext, toolName)
	if lookupError != nil {
		return fmt.Errorf(toolCheckErrorTemplateConstant, lookupError)
	}

	if !installed {
		fmt.Fprintf(command.OutOrStdout(), toolMissingTemplateConstant, toolName)
		return ToolNotInstalledError{ToolName: toolName}
	}
	fmt.Fprintf(command.OutOrStdout(), toolInstalledTemplateConstant, toolName)
	return nil
}
