package cli

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/cellrun/cmd/cli/execution"
	"github.com/temirov/cellrun/internal/execshell"
	"github.com/temirov/cellrun/internal/utils"
	flagutils "github.com/temirov/cellrun/internal/utils/flags"
)

const (
	applicationNameConstant                 = "cellrun"
	applicationShortDescriptionConstant     = "Run shell commands and render their output as it streams"
	applicationLongDescriptionConstant      = "cellrun runs shell commands, streams stdout and stderr into a cumulative buffer, re-renders the buffer on every chunk, and cancels the process group on request."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	executionConfigurationKeyConstant       = "execution"
	environmentPrefixConstant               = "CELLRUN"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	rootCommandInfoMessageConstant          = "cellrun CLI executed"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldSignalConstant                  = "signal"
	cancellationSignalMessageConstant       = "cancellation requested"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	userConfigurationSearchPathConstant     = "$HOME/.cellrun"
)

//go:embed default_config.yaml
var embeddedDefaultConfigurationContent []byte

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration `mapstructure:"common"`
	Execution execution.CommandConfiguration `mapstructure:"execution"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
	cancellationSignals    []os.Signal
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant, userConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		cancellationSignals:    []os.Signal{os.Interrupt, syscall.SIGTERM},
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		&application.logLevelFlagValue,
		logLevelFlagNameConstant,
		string(utils.LogLevelInfo),
		logLevelChoices(),
		logLevelFlagUsageConstant,
	)
	flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		&application.logFormatFlagValue,
		logFormatFlagNameConstant,
		string(utils.LogFormatStructured),
		logFormatChoices(),
		logFormatFlagUsageConstant,
	)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	configurationProvider := func() execution.CommandConfiguration {
		return application.configuration.Execution
	}

	execBuilder := execution.CommandBuilder{
		LoggerProvider:               loggerProvider,
		ConfigurationProvider:        configurationProvider,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
	}
	execCommand, execBuildError := execBuilder.Build()
	if execBuildError == nil {
		cobraCommand.AddCommand(execCommand)
	}

	toolCheckBuilder := execution.ToolCheckCommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: configurationProvider,
	}
	toolCheckCommand, toolCheckBuildError := toolCheckBuilder.Build()
	if toolCheckBuildError == nil {
		cobraCommand.AddCommand(toolCheckCommand)
	}

	recordsBuilder := execution.RecordsCommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: configurationProvider,
	}
	recordsCommand, recordsBuildError := recordsBuilder.Build()
	if recordsBuildError == nil {
		cobraCommand.AddCommand(recordsCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// EmbeddedDefaultConfiguration returns the embedded default configuration data and type identifier.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	duplicatedContent := make([]byte, len(embeddedDefaultConfigurationContent))
	copy(duplicatedContent, embeddedDefaultConfigurationContent)
	return duplicatedContent, configurationTypeConstant
}

// SetOutput redirects command output and error streams.
func (application *Application) SetOutput(output io.Writer, errorOutput io.Writer) {
	application.rootCommand.SetOut(output)
	application.rootCommand.SetErr(errorOutput)
}

// Execute runs the command hierarchy with the process arguments.
func (application *Application) Execute() error {
	return application.ExecuteArguments(context.Background(), os.Args[1:])
}

// ExecuteArguments runs the command hierarchy with arguments. Interrupt and
// termination signals cancel the running execution instead of killing cellrun.
func (application *Application) ExecuteArguments(executionContext context.Context, arguments []string) error {
	if executionContext == nil {
		executionContext = context.Background()
	}

	cancellationToken := execshell.NewCancellationToken()
	stopSignalForwarding := application.forwardSignals(cancellationToken)
	defer stopSignalForwarding()

	application.rootCommand.SetArgs(flagutils.NormalizeToggleArguments(arguments))
	commandContext := application.commandContextAccessor.WithCancellationToken(executionContext, cancellationToken)
	executionError := application.rootCommand.ExecuteContext(commandContext)
	if syncError := utils.SyncLogger(application.logger); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) forwardSignals(cancellationToken *execshell.CancellationToken) func() {
	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, application.cancellationSignals...)
	stopChannel := make(chan struct{})

	go func() {
		select {
		case receivedSignal := <-signalChannel:
			application.logger.Info(cancellationSignalMessageConstant, zap.String(logFieldSignalConstant, receivedSignal.String()))
			cancellationToken.Cancel()
		case <-stopChannel:
		}
	}()

	return func() {
		signal.Stop(signalChannel)
		close(stopChannel)
	}
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}
	for configurationKey, configurationValue := range execution.DefaultConfigurationValues(executionConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogLevel))),
		utils.LogFormat(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogFormat))),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
	}

	return nil
}

// Configuration returns the configuration resolved by the most recent command invocation.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Debug(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	return command.Help()
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func logLevelChoices() []string {
	choices := make([]string, 0, len(utils.SupportedLogLevels))
	for _, logLevel := range utils.SupportedLogLevels {
		choices = append(choices, string(logLevel))
	}
	return choices
}

func logFormatChoices() []string {
	choices := make([]string, 0, len(utils.SupportedLogFormats))
	for _, logFormat := range utils.SupportedLogFormats {
		choices = append(choices, string(logFormat))
	}
	return choices
}
