package execution

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/cellrun/internal/environment"
	"github.com/temirov/cellrun/internal/records"
	pathutils "github.com/temirov/cellrun/internal/utils/path"
)

const (
	recordsCommandUseConstant              = "records"
	recordsCommandShortDescriptionConstant = "Inspect saved execution records"
	recordsListUseConstant                 = "list"
	recordsListShortDescriptionConstant    = "List saved execution records, oldest first"
	recordsShowUseConstant                 = "show <record-id>"
	recordsShowShortDescriptionConstant    = "Print one execution record as YAML"
	recordIdentifierRequiredMessage        = "records show requires exactly one record identifier"
	noRecordsMessageConstant               = "no execution records\n"
	recordListLineTemplateConstant         = "%s\t%s\t%s\t%s\n"
	recordExitCodeTemplateConstant         = "exit %d"
	recordCancelledStatusConstant          = "cancelled"
	recordsOpenErrorTemplateConstant       = "unable to open execution records: %w"
	recordsReadErrorTemplateConstant       = "unable to read execution records: %w"
	recordEncodeErrorTemplateConstant      = "unable to encode execution record: %w"
)

var errRecordIdentifierRequired = errors.New(recordIdentifierRequiredMessage)

// RecordsCommandBuilder assembles the records command group.
type RecordsCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
}

// Build constructs the records command with its list and show subcommands.
func (builder *RecordsCommandBuilder) Build() (*cobra.Command, error) {
	recordsCommand := &cobra.Command{
		Use:          recordsCommandUseConstant,
		Short:        recordsCommandShortDescriptionConstant,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return displayCommandHelp(command)
		},
	}

	recordsCommand.AddCommand(&cobra.Command{
		Use:          recordsListUseConstant,
		Short:        recordsListShortDescriptionConstant,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         builder.runList,
	})
	recordsCommand.AddCommand(&cobra.Command{
		Use:          recordsShowUseConstant,
		Short:        recordsShowShortDescriptionConstant,
		SilenceUsage: true,
		RunE:         builder.runShow,
	})

	return recordsCommand, nil
}

func (builder *RecordsCommandBuilder) runList(command *cobra.Command, _ []string) error {
	recordStore, storeError := builder.openStore()
	if storeError != nil {
		return storeError
	}

	storedRecords, listError := recordStore.List()
	if listError != nil {
		return fmt.Errorf(recordsReadErrorTemplateConstant, listError)
	}

	output := command.OutOrStdout()
	if len(storedRecords) == 0 {
		_, writeError := fmt.Fprint(output, noRecordsMessageConstant)
		return writeError
	}

	for _, storedRecord := range storedRecords {
		commandText, decodeError := storedRecord.DecodedInput()
		if decodeError != nil {
			commandText = storedRecord.Input
		}
		if _, writeError := fmt.Fprintf(output, recordListLineTemplateConstant, storedRecord.ID, storedRecord.CreatedAt.Format(time.RFC3339), describeRecordStatus(storedRecord), commandText); writeError != nil {
			return writeError
		}
	}
	return nil
}

func (builder *RecordsCommandBuilder) runShow(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 || len(strings.TrimSpace(arguments[0])) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errRecordIdentifierRequired
	}

	recordStore, storeError := builder.openStore()
	if storeError != nil {
		return storeError
	}

	storedRecord, loadError := recordStore.Load(strings.TrimSpace(arguments[0]))
	if loadError != nil {
		return fmt.Errorf(recordsReadErrorTemplateConstant, loadError)
	}

	encodedRecord, encodeError := yaml.Marshal(storedRecord)
	if encodeError != nil {
		return fmt.Errorf(recordEncodeErrorTemplateConstant, encodeError)
	}
	_, writeError := command.OutOrStdout().Write(encodedRecord)
	return writeError
}

func (builder *RecordsCommandBuilder) openStore() (*records.FileStore, error) {
	configuration := resolveConfiguration(builder.ConfigurationProvider)
	recordsDirectory := pathutils.NewDirectoryResolver(nil, environment.NewStore(nil).Expand).ExpandPath(configuration.RecordsDirectory)
	recordStore, storeError := records.NewFileStore(resolveLogger(builder.LoggerProvider), recordsDirectory)
	if storeError != nil {
		return nil, fmt.Errorf(recordsOpenErrorTemplateConstant, storeError)
	}
	return recordStore, nil
}

func describeRecordStatus(storedRecord records.ExecutionRecord) string {
	if storedRecord.Cancelled {
		return recordCancelledStatusConstant
	}
	return fmt.Sprintf(recordExitCodeTemplateConstant, storedRecord.ExitCode)
}
