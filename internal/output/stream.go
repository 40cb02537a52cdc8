package output

import (
	"fmt"
	"io"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
)

// StandardOutputTarget routes merged text to the stream of a StreamSink.
const StandardOutputTarget = "-"

// StreamSink writes the standard-output target to a stream and delegates every other target.
type StreamSink struct {
	stream   io.Writer
	delegate Sink
}

// NewStreamSink constructs a StreamSink; a nil delegate falls back to a FileSink on the host filesystem.
func NewStreamSink(stream io.Writer, delegate Sink) *StreamSink {
	if delegate == nil {
		delegate = NewFileSink(nil)
	}
	return &StreamSink{stream: stream, delegate: delegate}
}

// Write prints text for the standard-output target and forwards other targets to the delegate.
func (sink *StreamSink) Write(target string, text string) error {
	if target != StandardOutputTarget {
		return sink.delegate.Write(target, text)
	}
	if _, writeError := io.WriteString(sink.stream, text); writeError != nil {
		return mergeerrors.Wrap(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, fmt.Errorf(writeFailureTemplateConstant, writeError))
	}
	return nil
}
