package batch

import (
	"io/fs"
	"os"
	"path/filepath"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

// directoryExpansion lists the file jobs of one directory triple and the relative paths present on one side only.
type directoryExpansion struct {
	jobs    []merge.Job
	skipped []string
}

// expandDirectory pairs every regular file under left with the same relative path under right.
// Base contributes the same relative path when it holds a regular file there.
func expandDirectory(job merge.Job, outputRoot string) (directoryExpansion, error) {
	leftFiles, leftError := regularFiles(job.Left().Path)
	if leftError != nil {
		return directoryExpansion{}, mergeerrors.Wrap(mergeerrors.OperationExpandDirectory, job.Identity(), mergeerrors.ErrInvalidJob, leftError)
	}
	rightFiles, rightError := regularFiles(job.Right().Path)
	if rightError != nil {
		return directoryExpansion{}, mergeerrors.Wrap(mergeerrors.OperationExpandDirectory, job.Identity(), mergeerrors.ErrInvalidJob, rightError)
	}

	rightIndex := make(map[string]struct{}, len(rightFiles))
	for _, relativePath := range rightFiles {
		rightIndex[relativePath] = struct{}{}
	}

	expansion := directoryExpansion{}
	leftIndex := make(map[string]struct{}, len(leftFiles))
	for _, relativePath := range leftFiles {
		leftIndex[relativePath] = struct{}{}
		if _, paired := rightIndex[relativePath]; !paired {
			expansion.skipped = append(expansion.skipped, filepath.Join(job.Left().Path, relativePath))
			continue
		}

		base := merge.EmptyArtifact()
		if !job.Base().Empty {
			candidate := filepath.Join(job.Base().Path, relativePath)
			if isRegularFile(candidate) {
				base = merge.FileArtifact(candidate)
			}
		}

		fileJob := merge.NewJob(
			merge.FileArtifact(filepath.Join(job.Left().Path, relativePath)),
			base,
			merge.FileArtifact(filepath.Join(job.Right().Path, relativePath)),
		)
		if len(outputRoot) > 0 {
			fileJob = fileJob.WithOutput(filepath.Join(outputRoot, relativePath))
		}
		expansion.jobs = append(expansion.jobs, fileJob)
	}

	for _, relativePath := range rightFiles {
		if _, paired := leftIndex[relativePath]; !paired {
			expansion.skipped = append(expansion.skipped, filepath.Join(job.Right().Path, relativePath))
		}
	}
	return expansion, nil
}

// regularFiles lists regular files below root as paths relative to root, in lexical order.
func regularFiles(root string) ([]string, error) {
	var relativePaths []string
	walkError := filepath.WalkDir(root, func(path string, entry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return entryError
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(root, path)
		if relativeError != nil {
			return relativeError
		}
		relativePaths = append(relativePaths, relativePath)
		return nil
	})
	return relativePaths, walkError
}

func isRegularFile(path string) bool {
	fileInfo, statError := os.Stat(path)
	return statError == nil && fileInfo.Mode().IsRegular()
}
