package execshell_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/cellrun/internal/execshell"
)

const (
	testEncoderBufferConstant      = "line one\nline two\n"
	testEncoderCellIdentifier      = "cell-7"
	testEncoderHTMLMimeType        = "text/html"
	testEncoderMalformedMimeType   = "not a mime;;"
	testEncoderParameterizedMime   = "text/plain; charset=utf-8"
	testEncoderCustomToolName      = "custom"
	testEncoderCustomToolMimeType  = "application/vnd.cellrun.custom"
	testEncoderPanickingToolName   = "panicking"
	testEncoderUnrelatedCommand    = "ls -la"
	testEncoderCustomToolCommand   = "custom --flag"
	testEncoderVercelHintedCommand = "./deploy.sh"
)

type stubDetector struct {
	name        string
	matchPrefix string
	mimeType    string
	panics      bool
}

func (detector stubDetector) Name() string {
	return detector.name
}

func (detector stubDetector) Matches(command string) bool {
	return len(detector.matchPrefix) > 0 && execshell.PrimaryProgram(command) == detector.matchPrefix
}

func (detector stubDetector) Transform(buffer []byte, _ execshell.ExecutionMetadata) execshell.RenderableItem {
	if detector.panics {
		panic("detector failure")
	}
	return execshell.RenderableItem{Mime: detector.mimeType, Data: append([]byte(detector.name+":"), buffer...)}
}

type envelopeDocument struct {
	Content string `json:"content"`
	Mime    string `json:"mime"`
	UUID    string `json:"uuid"`
}

func TestOutputEncoderRequiresLogger(testInstance *testing.T) {
	encoder, creationError := execshell.NewOutputEncoder(nil, execshell.OutputEncoderOptions{})
	require.ErrorIs(testInstance, creationError, execshell.ErrLoggerNotConfigured)
	require.Nil(testInstance, encoder)

	validEncoder, validError := execshell.NewOutputEncoder(zap.NewNop(), execshell.OutputEncoderOptions{})
	require.NoError(testInstance, validError)
	require.ErrorIs(testInstance, validEncoder.RegisterDetector(nil), execshell.ErrDetectorRequired)
}

func TestOutputEncoderDispatch(testInstance *testing.T) {
	testCases := []struct {
		name         string
		command      string
		metadata     execshell.ExecutionMetadata
		expectMime   string
		expectData   string
		expectBase64 bool
	}{
		{
			name:       "default_plain_text",
			command:    testEncoderUnrelatedCommand,
			expectMime: execshell.DefaultMimeType,
			expectData: testEncoderBufferConstant,
		},
		{
			name:       "native_mime_passes_through",
			command:    testEncoderUnrelatedCommand,
			metadata:   execshell.ExecutionMetadata{MimeType: testEncoderHTMLMimeType},
			expectMime: testEncoderHTMLMimeType,
			expectData: testEncoderBufferConstant,
		},
		{
			name:       "parameters_are_stripped",
			command:    testEncoderUnrelatedCommand,
			metadata:   execshell.ExecutionMetadata{MimeType: testEncoderParameterizedMime},
			expectMime: execshell.DefaultMimeType,
			expectData: testEncoderBufferConstant,
		},
		{
			name:       "malformed_mime_falls_back",
			command:    testEncoderUnrelatedCommand,
			metadata:   execshell.ExecutionMetadata{MimeType: testEncoderMalformedMimeType},
			expectMime: execshell.DefaultMimeType,
			expectData: testEncoderBufferConstant,
		},
		{
			name:         "custom_mime_is_enveloped",
			command:      testEncoderUnrelatedCommand,
			metadata:     execshell.ExecutionMetadata{MimeType: testCustomMimeTypeConstant, CellID: testEncoderCellIdentifier},
			expectMime:   execshell.OutputItemsMimeType,
			expectBase64: true,
		},
		{
			name:       "detector_matches_command",
			command:    testEncoderCustomToolCommand,
			metadata:   execshell.ExecutionMetadata{MimeType: testCustomMimeTypeConstant},
			expectMime: testEncoderCustomToolMimeType,
			expectData: testEncoderCustomToolName + ":" + testEncoderBufferConstant,
		},
		{
			name:       "detector_selected_by_tool_hint",
			command:    testEncoderVercelHintedCommand,
			metadata:   execshell.ExecutionMetadata{ToolName: testEncoderCustomToolName},
			expectMime: testEncoderCustomToolMimeType,
			expectData: testEncoderCustomToolName + ":" + testEncoderBufferConstant,
		},
	}

	encoder, creationError := execshell.NewOutputEncoder(zap.NewNop(), execshell.OutputEncoderOptions{
		Detectors: []execshell.Detector{
			stubDetector{name: testEncoderCustomToolName, matchPrefix: testEncoderCustomToolName, mimeType: testEncoderCustomToolMimeType},
		},
	})
	require.NoError(testInstance, creationError)

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			item := encoder.Encode([]byte(testEncoderBufferConstant), testCase.command, testCase.metadata)
			require.Equal(testInstance, testCase.expectMime, item.Mime)
			if !testCase.expectBase64 {
				require.Equal(testInstance, testCase.expectData, string(item.Data))
				return
			}

			var envelope envelopeDocument
			require.NoError(testInstance, json.Unmarshal(item.Data, &envelope))
			require.Equal(testInstance, testCase.metadata.MimeType, envelope.Mime)
			require.Equal(testInstance, testCase.metadata.CellID, envelope.UUID)
			decodedContent, decodeError := base64.StdEncoding.DecodeString(envelope.Content)
			require.NoError(testInstance, decodeError)
			require.Equal(testInstance, testEncoderBufferConstant, string(decodedContent))
		})
	}
}

func TestOutputEncoderConsultsDetectorsInRegistrationOrder(testInstance *testing.T) {
	encoder, creationError := execshell.NewOutputEncoder(zap.NewNop(), execshell.OutputEncoderOptions{})
	require.NoError(testInstance, creationError)

	require.NoError(testInstance, encoder.RegisterDetector(stubDetector{name: "first", matchPrefix: testEncoderCustomToolName, mimeType: "application/x-first"}))
	require.NoError(testInstance, encoder.RegisterDetector(stubDetector{name: "second", matchPrefix: testEncoderCustomToolName, mimeType: "application/x-second"}))

	item := encoder.Encode([]byte(testEncoderBufferConstant), testEncoderCustomToolCommand, execshell.ExecutionMetadata{})
	require.Equal(testInstance, "application/x-first", item.Mime)
}

func TestOutputEncoderRecoversFromDetectorPanic(testInstance *testing.T) {
	observerCore, observedLogs := observer.New(zap.DebugLevel)
	encoder, creationError := execshell.NewOutputEncoder(zap.New(observerCore), execshell.OutputEncoderOptions{
		Detectors: []execshell.Detector{stubDetector{name: testEncoderPanickingToolName, panics: true}},
	})
	require.NoError(testInstance, creationError)

	var item execshell.RenderableItem
	require.NotPanics(testInstance, func() {
		item = encoder.Encode([]byte(testEncoderBufferConstant), testEncoderUnrelatedCommand, execshell.ExecutionMetadata{ToolName: testEncoderPanickingToolName})
	})
	require.Equal(testInstance, execshell.DefaultMimeType, item.Mime)
	require.Equal(testInstance, testEncoderBufferConstant, string(item.Data))
	require.Equal(testInstance, 1, observedLogs.FilterMessage("output detector failed; falling back").Len())
}

func TestOutputEncoderHonoursConfiguredNativeMimeTypes(testInstance *testing.T) {
	encoder, creationError := execshell.NewOutputEncoder(zap.NewNop(), execshell.OutputEncoderOptions{
		NativeMimeTypes: []string{execshell.DefaultMimeType, " Application/X-Custom "},
	})
	require.NoError(testInstance, creationError)

	customItem := encoder.Encode([]byte(testEncoderBufferConstant), testEncoderUnrelatedCommand, execshell.ExecutionMetadata{MimeType: testCustomMimeTypeConstant})
	require.Equal(testInstance, testCustomMimeTypeConstant, customItem.Mime)

	htmlItem := encoder.Encode([]byte(testEncoderBufferConstant), testEncoderUnrelatedCommand, execshell.ExecutionMetadata{MimeType: testEncoderHTMLMimeType})
	require.Equal(testInstance, execshell.OutputItemsMimeType, htmlItem.Mime)
}
