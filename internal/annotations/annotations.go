// Package annotations parses cell annotation documents that tune how an execution is run and rendered.
package annotations

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/cellrun/internal/execshell"
)

const (
	// PropertyInteractive marks cells that expect terminal input.
	PropertyInteractive = "interactive"
	// PropertyBackground marks long-running cells that should not block the session.
	PropertyBackground = "background"
	// PropertyCloseTerminalOnSuccess marks cells whose terminal closes after a successful run.
	PropertyCloseTerminalOnSuccess = "closeTerminalOnSuccess"
	// PropertyPromptEnvironment marks cells whose exported variables are prompted for.
	PropertyPromptEnvironment = "promptEnv"

	propertyTrueValueConstant          = "true"
	propertyFalseValueConstant         = "false"
	annotationsReadErrorTemplate       = "annotations: unable to read %s: %w"
	annotationsParseErrorTemplate      = "annotations: unable to parse document: %w"
	annotationsFilePathRequiredMessage = "annotations: file path required"
)

// ErrFilePathRequired indicates LoadFile was called without a path.
var ErrFilePathRequired = errors.New(annotationsFilePathRequiredMessage)

// CellAnnotations captures the annotations attached to one runnable cell.
// Boolean-like properties are kept as strings so an absent value can defer to configuration.
type CellAnnotations struct {
	ID                     string `yaml:"id"`
	Name                   string `yaml:"name"`
	MimeType               string `yaml:"mimeType"`
	Category               string `yaml:"category"`
	Tool                   string `yaml:"tool"`
	Interactive            string `yaml:"interactive"`
	Background             string `yaml:"background"`
	CloseTerminalOnSuccess string `yaml:"closeTerminalOnSuccess"`
	PromptEnvironment      string `yaml:"promptEnv"`
}

// Parse decodes a YAML annotations document. An empty document yields zero annotations.
func Parse(documentContent []byte) (CellAnnotations, error) {
	var cellAnnotations CellAnnotations
	if len(strings.TrimSpace(string(documentContent))) == 0 {
		return cellAnnotations, nil
	}
	if decodeError := yaml.Unmarshal(documentContent, &cellAnnotations); decodeError != nil {
		return CellAnnotations{}, fmt.Errorf(annotationsParseErrorTemplate, decodeError)
	}
	return cellAnnotations, nil
}

// LoadFile reads and parses the annotations document at filePath.
func LoadFile(filePath string) (CellAnnotations, error) {
	trimmedFilePath := strings.TrimSpace(filePath)
	if len(trimmedFilePath) == 0 {
		return CellAnnotations{}, ErrFilePathRequired
	}
	documentContent, readError := os.ReadFile(trimmedFilePath)
	if readError != nil {
		return CellAnnotations{}, fmt.Errorf(annotationsReadErrorTemplate, trimmedFilePath, readError)
	}
	return Parse(documentContent)
}

// ExecutionProperty resolves a boolean property. A value of "true" or "false"
// overrides configuredDefault; anything else keeps it.
func (cellAnnotations CellAnnotations) ExecutionProperty(propertyName string, configuredDefault bool) bool {
	var rawValue string
	switch propertyName {
	case PropertyInteractive:
		rawValue = cellAnnotations.Interactive
	case PropertyBackground:
		rawValue = cellAnnotations.Background
	case PropertyCloseTerminalOnSuccess:
		rawValue = cellAnnotations.CloseTerminalOnSuccess
	case PropertyPromptEnvironment:
		rawValue = cellAnnotations.PromptEnvironment
	default:
		return configuredDefault
	}

	switch strings.ToLower(strings.TrimSpace(rawValue)) {
	case propertyTrueValueConstant:
		return true
	case propertyFalseValueConstant:
		return false
	default:
		return configuredDefault
	}
}

// ToExecutionMetadata maps the annotations onto execution metadata.
func (cellAnnotations CellAnnotations) ToExecutionMetadata() execshell.ExecutionMetadata {
	return execshell.ExecutionMetadata{
		MimeType: strings.TrimSpace(cellAnnotations.MimeType),
		ToolName: strings.TrimSpace(cellAnnotations.Tool),
		CellID:   strings.TrimSpace(cellAnnotations.ID),
		Name:     strings.TrimSpace(cellAnnotations.Name),
		Category: strings.TrimSpace(cellAnnotations.Category),
	}
}
