// Package records captures execution results as records and keeps them in a local YAML journal.
package records

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/temirov/cellrun/internal/execshell"
)

const unknownExitCodeConstant = -1

// ExecutionRecord is the persisted summary of one execution.
type ExecutionRecord struct {
	ID        string         `yaml:"id"`
	CreatedAt time.Time      `yaml:"createdAt"`
	Input     string         `yaml:"input"`
	Stdout    string         `yaml:"stdout"`
	Stderr    string         `yaml:"stderr"`
	ExitCode  int            `yaml:"exitCode"`
	PID       int            `yaml:"pid"`
	Cancelled bool           `yaml:"cancelled"`
	Metadata  RecordMetadata `yaml:"metadata"`
}

// RecordMetadata carries the cell annotations kept with a record.
type RecordMetadata struct {
	Name     string `yaml:"name"`
	MimeType string `yaml:"mimeType"`
	Category string `yaml:"category"`
}

// IdentifierGenerator produces record identifiers.
type IdentifierGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// RecordBuilder converts execution outcomes into records.
type RecordBuilder struct {
	generateIdentifier IdentifierGenerator
	now                Clock
}

// NewRecordBuilder constructs a builder. Nil arguments select random UUIDs and the wall clock.
func NewRecordBuilder(generateIdentifier IdentifierGenerator, now Clock) *RecordBuilder {
	if generateIdentifier == nil {
		generateIdentifier = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &RecordBuilder{generateIdentifier: generateIdentifier, now: now}
}

// Build summarizes the request and its outcome. The output is filed under
// Stdout for a zero exit code and under Stderr otherwise.
func (builder *RecordBuilder) Build(request execshell.ExecutionRequest, outcome execshell.ExecutionOutcome) ExecutionRecord {
	exitCode := outcome.ExitCodeValue(unknownExitCodeConstant)
	record := ExecutionRecord{
		ID:        builder.generateIdentifier(),
		CreatedAt: builder.now().UTC(),
		Input:     url.PathEscape(request.Command),
		ExitCode:  exitCode,
		PID:       outcome.ProcessID,
		Cancelled: outcome.WasCancelled,
		Metadata: RecordMetadata{
			Name:     request.Metadata.Name,
			MimeType: request.Metadata.ResolvedMimeType(),
			Category: request.Metadata.Category,
		},
	}
	if exitCode == 0 {
		record.Stdout = string(outcome.Output)
	} else {
		record.Stderr = string(outcome.Output)
	}
	return record
}

// DecodedInput returns the original command text of the record.
func (record ExecutionRecord) DecodedInput() (string, error) {
	return url.PathUnescape(record.Input)
}
