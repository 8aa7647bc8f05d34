// Package ui renders execution progress for terminal users.
//
// ConsoleExecutionEventLogger turns execution lifecycle events into concise
// console messages while TerminalSink streams rendered output items to a
// terminal writer.
package ui
