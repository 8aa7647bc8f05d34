package execshell

import (
	"encoding/base64"
	"encoding/json"
	"mime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// OutputItemsMimeType identifies the JSON envelope used for mime types without a native renderer.
	OutputItemsMimeType = "application/vnd.cellrun.output-items+json"

	malformedMimeTypeMessageConstant = "falling back to default mime type"
	detectorPanicMessageConstant     = "output detector failed; falling back"
	envelopeEncodingMessageConstant  = "unable to encode output envelope"
	logFieldMimeTypeConstant         = "mime_type"
	logFieldDetectorConstant         = "detector"
	logFieldPanicConstant            = "panic"
)

// DefaultNativeMimeTypes lists the mime types a sink renders without a custom renderer.
var DefaultNativeMimeTypes = []string{
	DefaultMimeType,
	"text/html",
	"text/markdown",
	"application/json",
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/svg+xml",
}

// Detector recognizes commands of a specific tool and renders their output as a structured item.
type Detector interface {
	Name() string
	Matches(command string) bool
	Transform(buffer []byte, metadata ExecutionMetadata) RenderableItem
}

// OutputEncoderOptions configures OutputEncoder.
type OutputEncoderOptions struct {
	NativeMimeTypes []string
	Detectors       []Detector
}

// OutputEncoder turns an accumulated buffer into a RenderableItem.
type OutputEncoder struct {
	logger          *zap.Logger
	mutex           sync.RWMutex
	detectors       []Detector
	nativeMimeTypes map[string]struct{}
}

type outputItemsEnvelope struct {
	Content string `json:"content"`
	Mime    string `json:"mime"`
	UUID    string `json:"uuid,omitempty"`
}

// NewOutputEncoder constructs an encoder. Empty NativeMimeTypes selects DefaultNativeMimeTypes.
func NewOutputEncoder(logger *zap.Logger, options OutputEncoderOptions) (*OutputEncoder, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}

	nativeMimeTypes := options.NativeMimeTypes
	if len(nativeMimeTypes) == 0 {
		nativeMimeTypes = DefaultNativeMimeTypes
	}

	encoder := &OutputEncoder{
		logger:          logger,
		nativeMimeTypes: make(map[string]struct{}, len(nativeMimeTypes)),
	}
	for _, nativeMimeType := range nativeMimeTypes {
		normalizedMimeType := strings.ToLower(strings.TrimSpace(nativeMimeType))
		if len(normalizedMimeType) > 0 {
			encoder.nativeMimeTypes[normalizedMimeType] = struct{}{}
		}
	}

	for _, detector := range options.Detectors {
		if registrationError := encoder.RegisterDetector(detector); registrationError != nil {
			return nil, registrationError
		}
	}

	return encoder, nil
}

// RegisterDetector appends a detector; detectors are consulted in registration order.
func (encoder *OutputEncoder) RegisterDetector(detector Detector) error {
	if detector == nil {
		return ErrDetectorRequired
	}
	encoder.mutex.Lock()
	defer encoder.mutex.Unlock()
	encoder.detectors = append(encoder.detectors, detector)
	return nil
}

// Encode packages the buffer. It never fails: the last resort is plain output with the default mime type.
func (encoder *OutputEncoder) Encode(buffer []byte, command string, metadata ExecutionMetadata) RenderableItem {
	if detectedItem, detected := encoder.encodeWithDetector(buffer, command, metadata); detected {
		return detectedItem
	}

	resolvedMimeType := encoder.resolveMimeType(metadata)
	if !encoder.isNative(resolvedMimeType) {
		if envelopeItem, encoded := encoder.encodeEnvelope(buffer, resolvedMimeType, metadata); encoded {
			return envelopeItem
		}
	}

	return RenderableItem{Mime: resolvedMimeType, Data: buffer}
}

func (encoder *OutputEncoder) encodeWithDetector(buffer []byte, command string, metadata ExecutionMetadata) (item RenderableItem, detected bool) {
	encoder.mutex.RLock()
	detectors := append([]Detector{}, encoder.detectors...)
	encoder.mutex.RUnlock()

	for _, detector := range detectors {
		if !detector.Matches(command) && !encoder.matchesToolHint(detector, metadata) {
			continue
		}
		return encoder.transformSafely(detector, buffer, metadata)
	}
	return RenderableItem{}, false
}

func (encoder *OutputEncoder) matchesToolHint(detector Detector, metadata ExecutionMetadata) bool {
	toolHint := strings.TrimSpace(metadata.ToolName)
	return len(toolHint) > 0 && strings.EqualFold(toolHint, detector.Name())
}

func (encoder *OutputEncoder) transformSafely(detector Detector, buffer []byte, metadata ExecutionMetadata) (item RenderableItem, detected bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			encoder.logger.Error(detectorPanicMessageConstant, zap.String(logFieldDetectorConstant, detector.Name()), zap.Any(logFieldPanicConstant, recovered))
			item = RenderableItem{}
			detected = false
		}
	}()
	return detector.Transform(buffer, metadata), true
}

func (encoder *OutputEncoder) resolveMimeType(metadata ExecutionMetadata) string {
	requestedMimeType := metadata.ResolvedMimeType()
	mediaType, _, parseError := mime.ParseMediaType(requestedMimeType)
	if parseError != nil {
		encoder.logger.Debug(malformedMimeTypeMessageConstant, zap.String(logFieldMimeTypeConstant, requestedMimeType), zap.Error(parseError))
		return DefaultMimeType
	}
	return mediaType
}

func (encoder *OutputEncoder) isNative(mimeType string) bool {
	_, native := encoder.nativeMimeTypes[mimeType]
	return native
}

func (encoder *OutputEncoder) encodeEnvelope(buffer []byte, mimeType string, metadata ExecutionMetadata) (RenderableItem, bool) {
	envelope := outputItemsEnvelope{
		Content: base64.StdEncoding.EncodeToString(buffer),
		Mime:    mimeType,
		UUID:    metadata.CellID,
	}
	encodedEnvelope, marshalError := json.Marshal(envelope)
	if marshalError != nil {
		encoder.logger.Warn(envelopeEncodingMessageConstant, zap.Error(marshalError))
		return RenderableItem{}, false
	}
	return RenderableItem{Mime: OutputItemsMimeType, Data: encodedEnvelope}, true
}
