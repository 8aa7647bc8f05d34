package utils

import (
	"io"
	"sync"
)

type errorFlusher interface {
	Flush() error
}

type plainFlusher interface {
	Flush()
}

// FlushingWriter serializes writes and flushes buffered destinations after each
// one so streamed output reaches the terminal as soon as it is produced.
type FlushingWriter struct {
	writer       io.Writer
	mutex        sync.Mutex
	bytesWritten int64
}

// NewFlushingWriter wraps writer. It returns nil for a nil writer and never double wraps.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{writer: writer}
}

// Write delegates to the underlying writer and flushes it when it supports flushing.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return 0, nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	written, writeError := flushingWriter.writer.Write(data)
	flushingWriter.bytesWritten += int64(written)
	if writeError != nil {
		return written, writeError
	}

	switch flusher := flushingWriter.writer.(type) {
	case errorFlusher:
		if flushError := flusher.Flush(); flushError != nil {
			return written, flushError
		}
	case plainFlusher:
		flusher.Flush()
	}
	return written, nil
}

// BytesWritten reports how many bytes reached the underlying writer.
func (flushingWriter *FlushingWriter) BytesWritten() int64 {
	if flushingWriter == nil {
		return 0
	}
	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()
	return flushingWriter.bytesWritten
}
