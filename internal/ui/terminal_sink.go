package ui

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/temirov/cellrun/internal/execshell"
	"github.com/temirov/cellrun/internal/utils"
)

const (
	textMimeTypePrefixConstant  = "text/"
	terminalLineBreakConstant   = "\n"
	rerenderSeparatorConstant   = "\n--- output re-rendered ---\n"
	writerNotConfiguredConstant = "ui: terminal writer not configured"
)

// ErrTerminalWriterNotConfigured indicates a TerminalSink without a destination writer.
var ErrTerminalWriterNotConfigured = errors.New(writerNotConfiguredConstant)

// TerminalSink writes rendered items to a terminal. Textual items stream as
// they grow: only the bytes appended since the previous render are written.
// Structured items are held until Flush because each render replaces the last.
type TerminalSink struct {
	mutex            sync.Mutex
	writer           io.Writer
	writtenText      []byte
	pendingStructure *execshell.RenderableItem
}

// NewTerminalSink wraps writer so every write reaches the terminal immediately.
func NewTerminalSink(writer io.Writer) *TerminalSink {
	return &TerminalSink{writer: utils.NewFlushingWriter(writer)}
}

// Replace implements execshell.Sink.
func (sink *TerminalSink) Replace(items []execshell.RenderableItem) error {
	if sink == nil || sink.writer == nil {
		return ErrTerminalWriterNotConfigured
	}

	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	for itemIndex := range items {
		item := items[itemIndex]
		if !strings.HasPrefix(item.Mime, textMimeTypePrefixConstant) {
			pending := execshell.RenderableItem{Mime: item.Mime, Data: append([]byte(nil), item.Data...)}
			sink.pendingStructure = &pending
			continue
		}
		if writeError := sink.writeText(item.Data); writeError != nil {
			return writeError
		}
	}
	return nil
}

// Flush writes the latest structured item, if any, followed by a line break.
func (sink *TerminalSink) Flush() error {
	if sink == nil || sink.writer == nil {
		return ErrTerminalWriterNotConfigured
	}

	sink.mutex.Lock()
	defer sink.mutex.Unlock()

	if sink.pendingStructure == nil {
		return nil
	}
	structuredData := sink.pendingStructure.Data
	sink.pendingStructure = nil
	if _, writeError := sink.writer.Write(structuredData); writeError != nil {
		return writeError
	}
	_, writeError := io.WriteString(sink.writer, terminalLineBreakConstant)
	return writeError
}

func (sink *TerminalSink) writeText(renderedText []byte) error {
	if bytes.HasPrefix(renderedText, sink.writtenText) {
		delta := renderedText[len(sink.writtenText):]
		sink.writtenText = append(sink.writtenText, delta...)
		if len(delta) == 0 {
			return nil
		}
		_, writeError := sink.writer.Write(delta)
		return writeError
	}

	sink.writtenText = append(sink.writtenText[:0], renderedText...)
	if _, writeError := io.WriteString(sink.writer, rerenderSeparatorConstant); writeError != nil {
		return writeError
	}
	_, writeError := sink.writer.Write(renderedText)
	return writeError
}
