// Package linebased merges files line by line by delegating to git merge-file.
package linebased

import (
	"context"
	"errors"
	"os"

	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/execshell"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	// StrategyName identifies the line-based engine in configuration.
	StrategyName = "linebased"

	gitConfigFlagConstant                = "-c"
	gitConflictStyleSettingConstant      = "merge.conflictStyle=merge"
	mergeFileSubcommandConstant          = "merge-file"
	printToStandardOutputConstant        = "-p"
	labelFlagConstant                    = "-L"
	leftLabelConstant                    = "left"
	baseLabelConstant                    = "base"
	rightLabelConstant                   = "right"
	maximumConflictExitCodeConstant      = 127
	emptyBasePatternConstant             = "treemerge-empty-base-*"
	executorNotConfiguredMessageConstant = "line-based engine requires a git executor"
)

// ErrExecutorNotConfigured indicates the engine was constructed without a git executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Engine performs file-level three-way merges.
type Engine struct {
	executor GitExecutor
}

// NewEngine constructs a line-based engine backed by the provided executor.
func NewEngine(executor GitExecutor) (*Engine, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Engine{executor: executor}, nil
}

// Name returns the strategy name.
func (engine *Engine) Name() string {
	return StrategyName
}

// StatsKeys lists the counters a line-based merge can feed.
func (engine *Engine) StatsKeys() []string {
	return []string{merge.StatsKeyFiles, merge.StatsKeyLines}
}

// BuildMerge runs git merge-file and returns its output. Exit codes up to 127 count conflicts and still yield merged text.
func (engine *Engine) BuildMerge(executionContext context.Context, job merge.Job) (merge.MergeResult, error) {
	basePath := job.Base().Path
	if job.Base().Empty {
		placeholderPath, placeholderError := createEmptyPlaceholder()
		if placeholderError != nil {
			return merge.MergeResult{}, mergeerrors.Wrap(mergeerrors.OperationBuildMerge, job.Identity(), mergeerrors.ErrMergeEngine, placeholderError)
		}
		defer os.Remove(placeholderPath)
		basePath = placeholderPath
	}

	details := execshell.CommandDetails{
		Arguments: []string{
			gitConfigFlagConstant, gitConflictStyleSettingConstant,
			mergeFileSubcommandConstant, printToStandardOutputConstant,
			labelFlagConstant, leftLabelConstant,
			labelFlagConstant, baseLabelConstant,
			labelFlagConstant, rightLabelConstant,
			job.Left().Path, basePath, job.Right().Path,
		},
		MaximumAcceptedExitCode: maximumConflictExitCodeConstant,
	}

	result, executionError := engine.executor.ExecuteGit(executionContext, details)
	if executionError != nil {
		return merge.MergeResult{}, mergeerrors.Wrap(mergeerrors.OperationBuildMerge, job.Identity(), mergeerrors.ErrMergeEngine, executionError)
	}
	return merge.MergeResult{Text: result.StandardOutput}, nil
}

func createEmptyPlaceholder() (string, error) {
	placeholder, creationError := os.CreateTemp("", emptyBasePatternConstant)
	if creationError != nil {
		return "", creationError
	}
	if closeError := placeholder.Close(); closeError != nil {
		os.Remove(placeholder.Name())
		return "", closeError
	}
	return placeholder.Name(), nil
}
