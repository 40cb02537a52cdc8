package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	batchReadFailureTemplateConstant   = "unable to read batch file: %v"
	batchParseFailureTemplateConstant  = "unable to parse batch file: %v"
	batchEmptyMessageConstant          = "batch file lists no jobs"
	batchEntryMissingTemplateConstant  = "job %d: left and right are required"
	batchEntryIdentityTemplateConstant = "%s#%d"
)

type jobsFile struct {
	Jobs []jobEntry `yaml:"jobs"`
}

type jobEntry struct {
	Left   string `yaml:"left"`
	Base   string `yaml:"base"`
	Right  string `yaml:"right"`
	Output string `yaml:"output"`
}

// LoadJobsFile reads a YAML batch file of merge triples. Relative paths resolve against the batch
// file's directory; an empty base yields a two-way job.
func LoadJobsFile(path string) ([]merge.Job, error) {
	content, readError := os.ReadFile(path)
	if readError != nil {
		return nil, mergeerrors.WrapMessage(mergeerrors.OperationLoadBatch, path, mergeerrors.ErrInvalidJob, fmt.Sprintf(batchReadFailureTemplateConstant, readError))
	}

	var parsed jobsFile
	if parseError := yaml.Unmarshal(content, &parsed); parseError != nil {
		return nil, mergeerrors.WrapMessage(mergeerrors.OperationLoadBatch, path, mergeerrors.ErrInvalidJob, fmt.Sprintf(batchParseFailureTemplateConstant, parseError))
	}
	if len(parsed.Jobs) == 0 {
		return nil, mergeerrors.WrapMessage(mergeerrors.OperationLoadBatch, path, mergeerrors.ErrInvalidJob, batchEmptyMessageConstant)
	}

	baseDirectory := filepath.Dir(path)
	jobs := make([]merge.Job, 0, len(parsed.Jobs))
	for entryIndex, entry := range parsed.Jobs {
		if len(strings.TrimSpace(entry.Left)) == 0 || len(strings.TrimSpace(entry.Right)) == 0 {
			subject := fmt.Sprintf(batchEntryIdentityTemplateConstant, path, entryIndex)
			return nil, mergeerrors.WrapMessage(mergeerrors.OperationLoadBatch, subject, mergeerrors.ErrInvalidJob, fmt.Sprintf(batchEntryMissingTemplateConstant, entryIndex))
		}

		base := merge.EmptyArtifact()
		if len(strings.TrimSpace(entry.Base)) > 0 {
			base = merge.FileArtifact(resolvePath(baseDirectory, entry.Base))
		}
		job := merge.NewJob(merge.FileArtifact(resolvePath(baseDirectory, entry.Left)), base, merge.FileArtifact(resolvePath(baseDirectory, entry.Right)))
		if len(strings.TrimSpace(entry.Output)) > 0 {
			job = job.WithOutput(resolvePath(baseDirectory, entry.Output))
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func resolvePath(baseDirectory string, path string) string {
	trimmed := strings.TrimSpace(path)
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(baseDirectory, trimmed)
}
