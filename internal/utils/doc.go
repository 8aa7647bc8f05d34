// Package utils exposes reusable helpers consumed by the cellrun commands.
//
// It houses ConfigurationLoader and LoggerFactory abstractions that integrate
// Viper, environment variables, and zap logging for the CLI, together with
// the command context accessor and the flushing writer used for terminal output.
package utils
