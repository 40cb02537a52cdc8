// Package output persists canonicalized merge text.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
)

const (
	outputFilePermissionsConstant      = fs.FileMode(0o644)
	outputDirectoryPermissionsConstant = fs.FileMode(0o755)
	targetMissingMessageConstant       = "output target not provided"
	targetDirectoryMessageConstant     = "output target is a directory"
	targetNotEmptyTemplateConstant     = "output target already holds %d bytes"
	targetInspectionTemplateConstant   = "unable to inspect output target: %v"
	parentCreationTemplateConstant     = "unable to create output directory %s: %v"
	writeFailureTemplateConstant       = "unable to write output: %v"
)

// FileSystem exposes the filesystem operations required by the sink.
type FileSystem interface {
	Lstat(path string) (fs.FileInfo, error)
	MkdirAll(path string, permissions fs.FileMode) error
	WriteFile(path string, data []byte, permissions fs.FileMode) error
}

// OSFileSystem implements FileSystem using the host filesystem.
type OSFileSystem struct{}

// Lstat describes the named file without following symbolic links.
func (OSFileSystem) Lstat(path string) (fs.FileInfo, error) {
	return os.Lstat(path)
}

// MkdirAll creates the directory and any missing parents.
func (OSFileSystem) MkdirAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}

// WriteFile writes data to the named file.
func (OSFileSystem) WriteFile(path string, data []byte, permissions fs.FileMode) error {
	return os.WriteFile(path, data, permissions)
}

// Sink writes merged text to a target.
type Sink interface {
	Write(target string, text string) error
}

// FileSink writes merged text to files that are absent or empty.
type FileSink struct {
	fileSystem FileSystem
}

// NewFileSink constructs a sink; a nil filesystem falls back to the host filesystem.
func NewFileSink(fileSystem FileSystem) *FileSink {
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}
	return &FileSink{fileSystem: fileSystem}
}

// Write stores text at target. The target must not be a directory and must be absent or empty.
func (sink *FileSink) Write(target string, text string) error {
	if len(target) == 0 {
		return mergeerrors.WrapMessage(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, targetMissingMessageConstant)
	}

	fileInfo, statError := sink.fileSystem.Lstat(target)
	switch {
	case statError == nil:
		if fileInfo.IsDir() {
			return mergeerrors.WrapMessage(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, targetDirectoryMessageConstant)
		}
		if fileInfo.Size() > 0 {
			return mergeerrors.WrapMessage(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, fmt.Sprintf(targetNotEmptyTemplateConstant, fileInfo.Size()))
		}
	case errors.Is(statError, fs.ErrNotExist):
		parentDirectory := filepath.Dir(target)
		if mkdirError := sink.fileSystem.MkdirAll(parentDirectory, outputDirectoryPermissionsConstant); mkdirError != nil {
			return mergeerrors.WrapMessage(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, fmt.Sprintf(parentCreationTemplateConstant, parentDirectory, mkdirError))
		}
	default:
		return mergeerrors.WrapMessage(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, fmt.Sprintf(targetInspectionTemplateConstant, statError))
	}

	if writeError := sink.fileSystem.WriteFile(target, []byte(text), outputFilePermissionsConstant); writeError != nil {
		return mergeerrors.Wrap(mergeerrors.OperationWriteOutput, target, mergeerrors.ErrOutputWrite, fmt.Errorf(writeFailureTemplateConstant, writeError))
	}
	return nil
}
