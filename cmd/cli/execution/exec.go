package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/cellrun/internal/annotations"
	"github.com/temirov/cellrun/internal/environment"
	"github.com/temirov/cellrun/internal/execshell"
	"github.com/temirov/cellrun/internal/records"
	"github.com/temirov/cellrun/internal/ui"
	"github.com/temirov/cellrun/internal/utils"
	flagutils "github.com/temirov/cellrun/internal/utils/flags"
	pathutils "github.com/temirov/cellrun/internal/utils/path"
)

const (
	execCommandUseConstant                 = "exec [command...]"
	execCommandShortDescriptionConstant    = "Run a shell command and stream its rendered output"
	execCommandLongDescriptionConstant     = "exec runs a command through the configured shell, re-renders the accumulated output on every chunk, and stops the process group on Ctrl-C or timeout. Flags end at the first command word; separate commands with -- when they start with a dash."
	workingDirectoryFlagNameConstant       = "cwd"
	workingDirectoryFlagUsageConstant      = "Working directory for the command; supports ~ and $VAR"
	environmentFlagNameConstant            = "env"
	environmentFlagShorthandConstant       = "e"
	environmentFlagUsageConstant           = "Environment override in KEY=VALUE form; repeatable"
	mimeFlagNameConstant                   = "mime"
	mimeFlagUsageConstant                  = "Mime type annotation for the output"
	toolFlagNameConstant                   = "tool"
	toolFlagUsageConstant                  = "Tool hint selecting an output detector"
	nameFlagNameConstant                   = "name"
	nameFlagUsageConstant                  = "Name annotation for the execution"
	categoryFlagNameConstant               = "category"
	categoryFlagUsageConstant              = "Category annotation for the execution"
	annotationsFlagNameConstant            = "annotations"
	annotationsFlagUsageConstant           = "Path to a YAML document with cell annotations"
	productionFlagNameConstant             = "prod"
	productionFlagUsageConstant            = "Append --prod to the command for production deployments"
	timeoutFlagNameConstant                = "timeout"
	timeoutFlagUsageConstant               = "Cancel the execution after this duration (0 disables)"
	recordFlagNameConstant                 = "record"
	recordFlagUsageConstant                = "Save an execution record to the records directory"
	resetEnvironmentFlagNameConstant       = "reset-env"
	resetEnvironmentFlagUsageConstant      = "Discard session environment values before applying overrides"
	commandRequiredMessageConstant         = "exec requires a command to run"
	executionCancelledMessageConstant      = "execution cancelled"
	invalidTimeoutMessageConstant          = "timeout must not be negative"
	annotationsLoadErrorTemplateConstant   = "unable to load annotations: %w"
	environmentParseErrorTemplateConstant  = "unable to parse environment overrides: %w"
	workingDirectoryErrorTemplateConstant  = "unable to use working directory: %w"
	executionErrorTemplateConstant         = "execution failed: %w"
	recordStoreErrorTemplateConstant       = "unable to store execution record: %w"
	renderFlushErrorTemplateConstant       = "unable to render output: %w"
	exitCodeErrorTemplateConstant          = "command exited with code %d"
	unknownExitCodeConstant                = -1
	argumentSeparatorConstant              = " "
	recordSavedMessageConstant             = "execution record saved"
	annotatedPropertiesMessageConstant     = "execution annotations resolved"
	environmentResolvedMessageConstant     = "session environment resolved"
	logFieldEnvironmentNamesConstant       = "variables"
	logFieldRecordPathConstant             = "record_path"
	logFieldRecordIdentifierConstant       = "record_id"
	logFieldInteractiveConstant            = "interactive"
	logFieldBackgroundConstant             = "background"
	logFieldCloseTerminalOnSuccessConstant = "close_terminal_on_success"
	logFieldPromptEnvironmentConstant      = "prompt_env"
)

var (
	errCommandRequired    = errors.New(commandRequiredMessageConstant)
	errExecutionCancelled = errors.New(executionCancelledMessageConstant)
	errInvalidTimeout     = errors.New(invalidTimeoutMessageConstant)
)

// ExitCodeError reports a command that ran to completion without succeeding.
type ExitCodeError struct {
	ExitCode int
}

// Error describes the exit code.
func (exitCodeError ExitCodeError) Error() string {
	return fmt.Sprintf(exitCodeErrorTemplateConstant, exitCodeError.ExitCode)
}

// CommandBuilder assembles the exec command.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        ConfigurationProvider
	HumanReadableLoggingProvider func() bool
	Spawner                      execshell.ProcessSpawner
	EnvironmentStore             *environment.Store
	DirectoryResolver            *pathutils.DirectoryResolver
	RecordBuilder                *records.RecordBuilder
}

type execOptions struct {
	command              string
	workingDirectory     string
	metadata             execshell.ExecutionMetadata
	cellAnnotations      annotations.CellAnnotations
	productionDeployment bool
	timeout              time.Duration
	record               bool
}

// Build constructs the exec command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:          execCommandUseConstant,
		Short:        execCommandShortDescriptionConstant,
		Long:         execCommandLongDescriptionConstant,
		RunE:         builder.run,
		SilenceUsage: true,
	}

	command.Flags().SetInterspersed(false)
	command.Flags().String(workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	command.Flags().StringArrayP(environmentFlagNameConstant, environmentFlagShorthandConstant, nil, environmentFlagUsageConstant)
	command.Flags().String(mimeFlagNameConstant, "", mimeFlagUsageConstant)
	command.Flags().String(toolFlagNameConstant, "", toolFlagUsageConstant)
	command.Flags().String(nameFlagNameConstant, "", nameFlagUsageConstant)
	command.Flags().String(categoryFlagNameConstant, "", categoryFlagUsageConstant)
	command.Flags().String(annotationsFlagNameConstant, "", annotationsFlagUsageConstant)
	command.Flags().Duration(timeoutFlagNameConstant, 0, timeoutFlagUsageConstant)

	var productionDeployment bool
	flagutils.AddToggleFlag(command.Flags(), &productionDeployment, productionFlagNameConstant, "", false, productionFlagUsageConstant)
	var recordExecution bool
	flagutils.AddToggleFlag(command.Flags(), &recordExecution, recordFlagNameConstant, "", false, recordFlagUsageConstant)
	var resetEnvironment bool
	flagutils.AddToggleFlag(command.Flags(), &resetEnvironment, resetEnvironmentFlagNameConstant, "", false, resetEnvironmentFlagUsageConstant)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := resolveLogger(builder.LoggerProvider)
	configuration := resolveConfiguration(builder.ConfigurationProvider)
	environmentStore := builder.resolveEnvironmentStore()

	options, optionsError := builder.parseOptions(command, arguments, configuration, environmentStore)
	if optionsError != nil {
		if errors.Is(optionsError, errCommandRequired) {
			if helpError := displayCommandHelp(command); helpError != nil {
				return helpError
			}
		}
		return optionsError
	}

	logger.Debug(
		annotatedPropertiesMessageConstant,
		zap.Bool(logFieldInteractiveConstant, options.cellAnnotations.ExecutionProperty(annotations.PropertyInteractive, false)),
		zap.Bool(logFieldBackgroundConstant, options.cellAnnotations.ExecutionProperty(annotations.PropertyBackground, false)),
		zap.Bool(logFieldCloseTerminalOnSuccessConstant, options.cellAnnotations.ExecutionProperty(annotations.PropertyCloseTerminalOnSuccess, false)),
		zap.Bool(logFieldPromptEnvironmentConstant, options.cellAnnotations.ExecutionProperty(annotations.PropertyPromptEnvironment, false)),
	)
	logger.Debug(environmentResolvedMessageConstant, zap.Strings(logFieldEnvironmentNamesConstant, environmentStore.Names()))

	coordinator, coordinatorError := buildCoordinator(engineDependencies{
		logger:               logger,
		configuration:        configuration,
		spawner:              builder.Spawner,
		humanReadableLogging: resolveHumanReadableLogging(builder.HumanReadableLoggingProvider),
	})
	if coordinatorError != nil {
		return coordinatorError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}
	if options.timeout > 0 {
		var cancelTimeout context.CancelFunc
		executionContext, cancelTimeout = context.WithTimeout(executionContext, options.timeout)
		defer cancelTimeout()
	}

	cancellationToken, tokenAvailable := utils.NewCommandContextAccessor().CancellationToken(executionContext)
	if !tokenAvailable {
		cancellationToken = execshell.NewCancellationToken()
	}

	request := execshell.ExecutionRequest{
		Command:              options.command,
		WorkingDirectory:     options.workingDirectory,
		Environment:          environmentStore.Snapshot(),
		CancellationToken:    cancellationToken,
		Metadata:             options.metadata,
		ProductionDeployment: options.productionDeployment,
	}

	terminalSink := ui.NewTerminalSink(command.OutOrStdout())
	outcome, executionError := coordinator.Execute(executionContext, request, terminalSink)
	if executionError != nil {
		return fmt.Errorf(executionErrorTemplateConstant, executionError)
	}

	if flushError := terminalSink.Flush(); flushError != nil {
		return fmt.Errorf(renderFlushErrorTemplateConstant, flushError)
	}

	if options.record {
		if recordError := builder.saveRecord(logger, configuration, request, outcome); recordError != nil {
			return recordError
		}
	}

	switch {
	case outcome.WasCancelled:
		return errExecutionCancelled
	case !outcome.Success:
		return ExitCodeError{ExitCode: outcome.ExitCodeValue(unknownExitCodeConstant)}
	default:
		return nil
	}
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, arguments []string, configuration CommandConfiguration, environmentStore *environment.Store) (execOptions, error) {
	commandLine := strings.TrimSpace(strings.Join(arguments, argumentSeparatorConstant))
	if len(commandLine) == 0 {
		return execOptions{}, errCommandRequired
	}

	options := execOptions{command: commandLine}

	annotationsPath, _ := command.Flags().GetString(annotationsFlagNameConstant)
	if len(strings.TrimSpace(annotationsPath)) > 0 {
		cellAnnotations, loadError := annotations.LoadFile(builder.resolveDirectoryResolver(environmentStore).ExpandPath(annotationsPath))
		if loadError != nil {
			return execOptions{}, fmt.Errorf(annotationsLoadErrorTemplateConstant, loadError)
		}
		options.cellAnnotations = cellAnnotations
	}
	options.metadata = options.cellAnnotations.ToExecutionMetadata()

	overrideMetadataField(command, mimeFlagNameConstant, &options.metadata.MimeType)
	overrideMetadataField(command, toolFlagNameConstant, &options.metadata.ToolName)
	overrideMetadataField(command, nameFlagNameConstant, &options.metadata.Name)
	overrideMetadataField(command, categoryFlagNameConstant, &options.metadata.Category)
	if len(options.metadata.MimeType) == 0 {
		options.metadata.MimeType = configuration.DefaultMimeType
	}

	if resetEnvironment, _ := command.Flags().GetBool(resetEnvironmentFlagNameConstant); resetEnvironment {
		environmentStore.Reset()
	}

	assignments, _ := command.Flags().GetStringArray(environmentFlagNameConstant)
	environmentOverrides, parseError := environment.ParseAssignments(assignments)
	if parseError != nil {
		return execOptions{}, fmt.Errorf(environmentParseErrorTemplateConstant, parseError)
	}
	for variableName, variableValue := range environmentOverrides {
		environmentOverrides[variableName] = environmentStore.Expand(variableValue)
	}
	environmentStore.SetAll(environmentOverrides)

	workingDirectory, _ := command.Flags().GetString(workingDirectoryFlagNameConstant)
	resolvedDirectory, resolveError := builder.resolveDirectoryResolver(environmentStore).ResolveExistingDirectory(workingDirectory)
	if resolveError != nil {
		return execOptions{}, fmt.Errorf(workingDirectoryErrorTemplateConstant, resolveError)
	}
	options.workingDirectory = resolvedDirectory

	options.productionDeployment, _ = command.Flags().GetBool(productionFlagNameConstant)
	options.record, _ = command.Flags().GetBool(recordFlagNameConstant)

	options.timeout, _ = command.Flags().GetDuration(timeoutFlagNameConstant)
	if options.timeout < 0 {
		return execOptions{}, errInvalidTimeout
	}

	return options, nil
}

func (builder *CommandBuilder) saveRecord(logger *zap.Logger, configuration CommandConfiguration, request execshell.ExecutionRequest, outcome execshell.ExecutionOutcome) error {
	recordBuilder := builder.RecordBuilder
	if recordBuilder == nil {
		recordBuilder = records.NewRecordBuilder(nil, nil)
	}

	recordsDirectory := builder.resolveDirectoryResolver(builder.resolveEnvironmentStore()).ExpandPath(configuration.RecordsDirectory)
	recordStore, storeError := records.NewFileStore(logger, recordsDirectory)
	if storeError != nil {
		return fmt.Errorf(recordStoreErrorTemplateConstant, storeError)
	}

	executionRecord := recordBuilder.Build(request, outcome)
	recordPath, saveError := recordStore.Save(executionRecord)
	if saveError != nil {
		return fmt.Errorf(recordStoreErrorTemplateConstant, saveError)
	}

	logger.Info(recordSavedMessageConstant, zap.String(logFieldRecordIdentifierConstant, executionRecord.ID), zap.String(logFieldRecordPathConstant, recordPath))
	return nil
}

func (builder *CommandBuilder) resolveEnvironmentStore() *environment.Store {
	if builder.EnvironmentStore == nil {
		builder.EnvironmentStore = environment.NewStore(nil)
	}
	return builder.EnvironmentStore
}

func (builder *CommandBuilder) resolveDirectoryResolver(environmentStore *environment.Store) *pathutils.DirectoryResolver {
	if builder.DirectoryResolver != nil {
		return builder.DirectoryResolver
	}
	return pathutils.NewDirectoryResolver(nil, environmentStore.Expand)
}

func overrideMetadataField(command *cobra.Command, flagName string, target *string) {
	if !command.Flags().Changed(flagName) {
		return
	}
	flagValue, _ := command.Flags().GetString(flagName)
	*target = strings.TrimSpace(flagValue)
}
