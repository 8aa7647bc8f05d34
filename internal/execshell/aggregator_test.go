package execshell_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/cellrun/internal/execshell"
)

func TestOutputAggregatorAccumulatesAcrossStreams(testInstance *testing.T) {
	aggregator := execshell.NewOutputAggregator()

	chunks := []execshell.OutputChunk{
		{Source: execshell.OutputStreamStandardOutput, Bytes: []byte("one ")},
		{Source: execshell.OutputStreamStandardError, Bytes: []byte("two ")},
		{Source: execshell.OutputStreamStandardOutput, Bytes: []byte("three")},
	}
	expectedSnapshots := []string{"one ", "one two ", "one two three"}

	for chunkIndex, chunk := range chunks {
		snapshot := aggregator.Append(chunk)
		require.Equal(testInstance, expectedSnapshots[chunkIndex], string(snapshot))
	}

	require.Equal(testInstance, 3, aggregator.ChunkCount())
	require.Equal(testInstance, len("one three"), aggregator.StreamByteCount(execshell.OutputStreamStandardOutput))
	require.Equal(testInstance, len("two "), aggregator.StreamByteCount(execshell.OutputStreamStandardError))
	require.Equal(testInstance, "one two three", string(aggregator.Snapshot()))
}

func TestOutputAggregatorSnapshotsCannotOverwriteLaterOutput(testInstance *testing.T) {
	aggregator := execshell.NewOutputAggregator()
	firstSnapshot := aggregator.Append(execshell.OutputChunk{Bytes: []byte("first")})

	_ = append(firstSnapshot, []byte("XXXXX")...)
	aggregator.Append(execshell.OutputChunk{Bytes: []byte("second")})

	require.Equal(testInstance, "firstsecond", string(aggregator.Snapshot()))
}

func TestOutputAggregatorStartsEmpty(testInstance *testing.T) {
	aggregator := execshell.NewOutputAggregator()
	require.Empty(testInstance, aggregator.Snapshot())
	require.Zero(testInstance, aggregator.ChunkCount())
	require.Zero(testInstance, aggregator.StreamByteCount(execshell.OutputStreamStandardError))
}
