// Package execshell runs shell-interpreted commands and streams their output.
//
// ExecutionCoordinator spawns one process per ExecutionRequest through a
// ProcessSpawner, folds stdout and stderr into a single cumulative buffer with
// OutputAggregator, re-encodes the whole buffer through OutputEncoder on every
// chunk, and replaces the contents of a Sink with the result. A one-shot
// CancellationToken detaches the streams and escalates termination signals.
package execshell
