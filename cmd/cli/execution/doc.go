// Package execution provides the exec and check-tool commands, which run shell
// commands through the cellrun execution engine and render their output on the
// terminal.
package execution
