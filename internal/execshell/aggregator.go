package execshell

import "bytes"

// OutputAggregator accumulates chunks from both streams into one append-only buffer.
type OutputAggregator struct {
	buffer          bytes.Buffer
	streamByteCount map[OutputStream]int
	chunkCount      int
}

// NewOutputAggregator constructs an empty aggregator.
func NewOutputAggregator() *OutputAggregator {
	return &OutputAggregator{streamByteCount: make(map[OutputStream]int, 2)}
}

// Append adds the chunk and returns the entire accumulated buffer.
// The returned slice is capacity-clipped so appending to it cannot overwrite later output.
func (aggregator *OutputAggregator) Append(chunk OutputChunk) []byte {
	aggregator.buffer.Write(chunk.Bytes)
	aggregator.streamByteCount[chunk.Source] += len(chunk.Bytes)
	aggregator.chunkCount++
	return aggregator.Snapshot()
}

// Snapshot returns the accumulated buffer without modifying it.
func (aggregator *OutputAggregator) Snapshot() []byte {
	accumulated := aggregator.buffer.Bytes()
	return accumulated[:len(accumulated):len(accumulated)]
}

// StreamByteCount reports how many bytes were received from the stream.
func (aggregator *OutputAggregator) StreamByteCount(stream OutputStream) int {
	return aggregator.streamByteCount[stream]
}

// ChunkCount reports how many chunks were appended.
func (aggregator *OutputAggregator) ChunkCount() int {
	return aggregator.chunkCount
}
