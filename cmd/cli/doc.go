// Package cli constructs the cellrun command-line interface, wiring the Cobra
// command hierarchy, configuration loader, structured logging, and the signal
// handling that cancels running executions.
package cli
