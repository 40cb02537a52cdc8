package linebased_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/treemerge/internal/conflicts"
	"github.com/tyemirov/treemerge/internal/engines/linebased"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/execshell"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	testBaseContentConstant  = "alpha\nbeta\ngamma\n"
	testLeftContentConstant  = "alpha\nbeta left\ngamma\n"
	testRightContentConstant = "alpha\nbeta right\ngamma\n"
	testMergedOutputConstant = "alpha\n<<<<<<< left\nbeta left\n=======\nbeta right\n>>>>>>> right\ngamma\n"
)

type recordingGitExecutor struct {
	result          execshell.ExecutionResult
	err             error
	recordedDetails []execshell.CommandDetails
	baseExisted     bool
}

func (executor *recordingGitExecutor) ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	arguments := details.Arguments
	basePath := arguments[len(arguments)-2]
	if _, statError := os.Stat(basePath); statError == nil {
		executor.baseExisted = true
	}
	return executor.result, executor.err
}

func TestEngineBuildMergeInvokesMergeFile(testInstance *testing.T) {
	executor := &recordingGitExecutor{result: execshell.ExecutionResult{StandardOutput: testMergedOutputConstant, ExitCode: 1}}
	engine, creationError := linebased.NewEngine(executor)
	require.NoError(testInstance, creationError)

	job := merge.NewJob(merge.FileArtifact("l.txt"), merge.FileArtifact("b.txt"), merge.FileArtifact("r.txt"))
	result, buildError := engine.BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, testMergedOutputConstant, result.Text)
	require.Nil(testInstance, result.Nodes)

	require.Len(testInstance, executor.recordedDetails, 1)
	details := executor.recordedDetails[0]
	require.Equal(testInstance, []string{
		"-c", "merge.conflictStyle=merge",
		"merge-file", "-p",
		"-L", "left", "-L", "base", "-L", "right",
		"l.txt", "b.txt", "r.txt",
	}, details.Arguments)
	require.Equal(testInstance, 127, details.MaximumAcceptedExitCode)
}

func TestEngineUsesPlaceholderForEmptyBase(testInstance *testing.T) {
	executor := &recordingGitExecutor{}
	engine, creationError := linebased.NewEngine(executor)
	require.NoError(testInstance, creationError)

	job := merge.NewJob(merge.FileArtifact("l.txt"), merge.EmptyArtifact(), merge.FileArtifact("r.txt"))
	_, buildError := engine.BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)
	require.True(testInstance, executor.baseExisted)

	arguments := executor.recordedDetails[0].Arguments
	placeholderPath := arguments[len(arguments)-2]
	_, statError := os.Stat(placeholderPath)
	require.True(testInstance, os.IsNotExist(statError))
}

func TestEngineWrapsExecutorFailures(testInstance *testing.T) {
	executor := &recordingGitExecutor{err: errors.New("git missing")}
	engine, creationError := linebased.NewEngine(executor)
	require.NoError(testInstance, creationError)

	job := merge.NewJob(merge.FileArtifact("l.txt"), merge.FileArtifact("b.txt"), merge.FileArtifact("r.txt"))
	_, buildError := engine.BuildMerge(context.Background(), job)
	require.ErrorIs(testInstance, buildError, mergeerrors.ErrMergeEngine)
	require.ErrorContains(testInstance, buildError, "git missing")
}

func TestEngineMetadata(testInstance *testing.T) {
	_, creationError := linebased.NewEngine(nil)
	require.ErrorIs(testInstance, creationError, linebased.ErrExecutorNotConfigured)

	engine, creationError := linebased.NewEngine(&recordingGitExecutor{})
	require.NoError(testInstance, creationError)
	require.Equal(testInstance, linebased.StrategyName, engine.Name())
	require.Equal(testInstance, []string{merge.StatsKeyFiles, merge.StatsKeyLines}, engine.StatsKeys())
}

func TestEngineMergesWithGit(testInstance *testing.T) {
	if _, lookupError := exec.LookPath("git"); lookupError != nil {
		testInstance.Skip("git executable not available")
	}

	directory := testInstance.TempDir()
	leftPath := writeFile(testInstance, directory, "left.txt", testLeftContentConstant)
	basePath := writeFile(testInstance, directory, "base.txt", testBaseContentConstant)
	rightPath := writeFile(testInstance, directory, "right.txt", testRightContentConstant)

	executor, executorError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner(), false)
	require.NoError(testInstance, executorError)
	engine, creationError := linebased.NewEngine(executor)
	require.NoError(testInstance, creationError)

	result, buildError := engine.BuildMerge(context.Background(), merge.NewJob(merge.FileArtifact(leftPath), merge.FileArtifact(basePath), merge.FileArtifact(rightPath)))
	require.NoError(testInstance, buildError)

	analysis := conflicts.Analyze(result.Text)
	require.Equal(testInstance, 1, analysis.ConflictCount)
	require.Equal(testInstance, 2, analysis.ConflictingLines)
	require.Equal(testInstance, 4, analysis.TotalLines)
}

func writeFile(testInstance *testing.T, directory string, name string, content string) string {
	testInstance.Helper()
	path := filepath.Join(directory, name)
	require.NoError(testInstance, os.WriteFile(path, []byte(content), 0o644))
	return path
}
