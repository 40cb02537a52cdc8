package utils

import "io"

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// FlushingWriter flushes buffered destinations after every write.
type FlushingWriter struct {
	writer io.Writer
}

// NewFlushingWriter wraps the provided writer.
func NewFlushingWriter(writer io.Writer) *FlushingWriter {
	return &FlushingWriter{writer: writer}
}

// Write forwards data and flushes the destination when it supports flushing.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	written, writeError := flushingWriter.writer.Write(data)
	if writeError != nil {
		return written, writeError
	}
	if destination, flushable := flushingWriter.writer.(flusher); flushable {
		if flushError := destination.Flush(); flushError != nil {
			return written, flushError
		}
	}
	return written, nil
}

// Sync commits file-backed destinations to storage.
func (flushingWriter *FlushingWriter) Sync() error {
	if destination, syncable := flushingWriter.writer.(syncer); syncable {
		return destination.Sync()
	}
	return nil
}
