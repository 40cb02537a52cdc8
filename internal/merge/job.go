// Package merge defines the merge triple, execution configuration, engine contract, and job outcome shared by the merge pipeline.
package merge

import (
	"fmt"
	"os"
	"strings"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
)

const (
	emptyArtifactLabelConstant         = "(empty)"
	jobIdentitySeparatorConstant       = " "
	artifactPathMissingMessageConstant = "%s artifact path is empty"
	artifactNotFoundTemplateConstant   = "%s artifact %s does not exist"
	artifactDirectoryTemplateConstant  = "%s artifact %s is a directory"
	artifactInspectionTemplateConstant = "%s artifact %s could not be inspected: %v"
	leftRevisionNameConstant           = "left"
	baseRevisionNameConstant           = "base"
	rightRevisionNameConstant          = "right"
	directoryMismatchTemplateConstant  = "left %s and right %s must both be files or both be directories"
	directoryBaseFileTemplateConstant  = "base %s must be a directory when merging directories"
)

// Kind tags a merge triple with its merge granularity.
type Kind string

// Supported merge kinds.
const (
	// KindThreeWay merges left and right against a common ancestor.
	KindThreeWay Kind = "three-way"
	// KindTwoWay merges left and right without a common ancestor.
	KindTwoWay Kind = "two-way"
)

// Artifact references one revision of a merge input. An empty artifact stands for "no common ancestor".
type Artifact struct {
	Path  string
	Empty bool
}

// FileArtifact returns an artifact referencing the provided path.
func FileArtifact(path string) Artifact {
	return Artifact{Path: strings.TrimSpace(path)}
}

// EmptyArtifact returns the placeholder used when a base revision is absent.
func EmptyArtifact() Artifact {
	return Artifact{Empty: true}
}

// String renders the artifact for logs and job identities.
func (artifact Artifact) String() string {
	if artifact.Empty {
		return emptyArtifactLabelConstant
	}
	return artifact.Path
}

// Job is an immutable merge triple.
type Job struct {
	kind   Kind
	left   Artifact
	base   Artifact
	right  Artifact
	output string
}

// NewJob constructs a merge triple; an empty base yields a two-way job.
func NewJob(left Artifact, base Artifact, right Artifact) Job {
	kind := KindThreeWay
	if base.Empty || len(strings.TrimSpace(base.Path)) == 0 {
		base = EmptyArtifact()
		kind = KindTwoWay
	}
	return Job{kind: kind, left: left, base: base, right: right}
}

// WithOutput returns a copy of the job bound to a per-job output target.
func (job Job) WithOutput(outputTarget string) Job {
	job.output = strings.TrimSpace(outputTarget)
	return job
}

// Kind returns the merge kind tag.
func (job Job) Kind() Kind {
	return job.kind
}

// Left returns the left revision.
func (job Job) Left() Artifact {
	return job.left
}

// Base returns the base revision.
func (job Job) Base() Artifact {
	return job.base
}

// Right returns the right revision.
func (job Job) Right() Artifact {
	return job.right
}

// Output returns the per-job output target, if any.
func (job Job) Output() string {
	return job.output
}

// Identity renders the job triple as "left base right".
func (job Job) Identity() string {
	return strings.Join([]string{job.left.String(), job.base.String(), job.right.String()}, jobIdentitySeparatorConstant)
}

// Validate checks that left and right denote existing non-directory content and base is a file or the empty placeholder.
func (job Job) Validate() error {
	if validationError := validateFileArtifact(leftRevisionNameConstant, job.left); validationError != nil {
		return mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, validationError.Error())
	}
	if !job.base.Empty {
		if validationError := validateFileArtifact(baseRevisionNameConstant, job.base); validationError != nil {
			return mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, validationError.Error())
		}
	}
	if validationError := validateFileArtifact(rightRevisionNameConstant, job.right); validationError != nil {
		return mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, validationError.Error())
	}
	return nil
}

// IsDirectoryTriple reports whether left and right both denote directories.
func (job Job) IsDirectoryTriple() (bool, error) {
	leftIsDirectory, leftError := isDirectory(job.left)
	if leftError != nil {
		return false, mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, leftError.Error())
	}
	rightIsDirectory, rightError := isDirectory(job.right)
	if rightError != nil {
		return false, mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, rightError.Error())
	}
	if leftIsDirectory != rightIsDirectory {
		return false, mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, fmt.Sprintf(directoryMismatchTemplateConstant, job.left.Path, job.right.Path))
	}
	if leftIsDirectory && !job.base.Empty {
		baseIsDirectory, baseError := isDirectory(job.base)
		if baseError != nil {
			return false, mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, baseError.Error())
		}
		if !baseIsDirectory {
			return false, mergeerrors.WrapMessage(mergeerrors.OperationValidateJob, job.Identity(), mergeerrors.ErrInvalidJob, fmt.Sprintf(directoryBaseFileTemplateConstant, job.base.Path))
		}
	}
	return leftIsDirectory, nil
}

func validateFileArtifact(revision string, artifact Artifact) error {
	if len(artifact.Path) == 0 {
		return fmt.Errorf(artifactPathMissingMessageConstant, revision)
	}
	fileInfo, statError := os.Stat(artifact.Path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return fmt.Errorf(artifactNotFoundTemplateConstant, revision, artifact.Path)
		}
		return fmt.Errorf(artifactInspectionTemplateConstant, revision, artifact.Path, statError)
	}
	if fileInfo.IsDir() {
		return fmt.Errorf(artifactDirectoryTemplateConstant, revision, artifact.Path)
	}
	return nil
}

func isDirectory(artifact Artifact) (bool, error) {
	if artifact.Empty {
		return false, nil
	}
	fileInfo, statError := os.Stat(artifact.Path)
	if statError != nil {
		if os.IsNotExist(statError) {
			return false, fmt.Errorf(artifactNotFoundTemplateConstant, "merge", artifact.Path)
		}
		return false, statError
	}
	return fileInfo.IsDir(), nil
}
