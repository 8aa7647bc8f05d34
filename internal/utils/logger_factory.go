package utils

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// SupportedLogLevels lists accepted log levels from most to least verbose.
var SupportedLogLevels = []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError}

// SupportedLogFormats lists accepted log formats.
var SupportedLogFormats = []LogFormat{LogFormatStructured, LogFormatConsole}

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
// Console loggers drop the caller and stack trace so lifecycle messages stay readable.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[requestedLogFormat]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding
	if requestedLogFormat == LogFormatConsole {
		configuration.DisableCaller = true
		configuration.DisableStacktrace = true
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	logger, buildError := configuration.Build()
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}

// SyncLogger flushes logger, ignoring the errors returned when stderr is a terminal or pipe.
func SyncLogger(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}
