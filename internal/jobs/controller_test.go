package jobs_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/treemerge/internal/benchmark"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/jobs"
	"github.com/tyemirov/treemerge/internal/merge"
	"github.com/tyemirov/treemerge/internal/output"
	"github.com/tyemirov/treemerge/internal/reporting"
)

const (
	testCleanTextConstant        = "package sample\n\nfunc A() {}\n"
	testConflictTextConstant     = "package sample\n<<<<<<< left\nfunc A() int { return 1 }\n=======\nfunc A() int { return 2 }\n>>>>>>> right\n"
	testCanonicalTextConstant    = "package sample\n<<<<<<< \nfunc A() int { return 1 }\n======= \nfunc A() int { return 2 }\n>>>>>>> \n"
	testEngineFailureConstant    = "unexpected token at 4:2"
	testEngineNameConstant       = "fake"
	testFailedLogMessageConstant = "merge job failed"
)

type fakeEngine struct {
	text      string
	nodes     *merge.NodeCounts
	err       error
	statsKeys []string
	calls     int
}

func (engine *fakeEngine) Name() string {
	return testEngineNameConstant
}

func (engine *fakeEngine) StatsKeys() []string {
	if engine.statsKeys != nil {
		return engine.statsKeys
	}
	return []string{merge.StatsKeyFiles, merge.StatsKeyLines}
}

func (engine *fakeEngine) BuildMerge(executionContext context.Context, job merge.Job) (merge.MergeResult, error) {
	engine.calls++
	if engine.err != nil {
		return merge.MergeResult{}, engine.err
	}
	return merge.MergeResult{Text: engine.text, Nodes: engine.nodes}, nil
}

func TestControllerProcessOutcomes(testInstance *testing.T) {
	testCases := []struct {
		name              string
		engine            *fakeEngine
		configuration     merge.ExecutionConfig
		missingLeft       bool
		expectError       error
		expectFailure     bool
		expectConflicts   int
		expectEventCode   string
		expectEngineCalls int
	}{
		{
			name:              "clean_merge",
			engine:            &fakeEngine{text: testCleanTextConstant},
			configuration:     merge.ExecutionConfig{CollectStats: true},
			expectEventCode:   reporting.EventCodeJobMerged,
			expectEngineCalls: 1,
		},
		{
			name:              "conflicting_merge_benchmarked",
			engine:            &fakeEngine{text: testConflictTextConstant},
			configuration:     merge.ExecutionConfig{CollectStats: true, BenchmarkRuns: 2},
			expectConflicts:   1,
			expectEventCode:   reporting.EventCodeJobConflicts,
			expectEngineCalls: 3,
		},
		{
			name:              "engine_failure_keep_going",
			engine:            &fakeEngine{err: errors.New(testEngineFailureConstant)},
			configuration:     merge.ExecutionConfig{KeepGoing: true},
			expectFailure:     true,
			expectEventCode:   reporting.EventCodeJobFailed,
			expectEngineCalls: 1,
		},
		{
			name:              "engine_failure_fatal",
			engine:            &fakeEngine{err: errors.New(testEngineFailureConstant)},
			configuration:     merge.ExecutionConfig{},
			expectError:       mergeerrors.ErrMergeEngine,
			expectFailure:     true,
			expectEventCode:   reporting.EventCodeJobFailed,
			expectEngineCalls: 1,
		},
		{
			name:            "invalid_job_keep_going",
			engine:          &fakeEngine{text: testCleanTextConstant},
			configuration:   merge.ExecutionConfig{KeepGoing: true},
			missingLeft:     true,
			expectFailure:   true,
			expectEventCode: reporting.EventCodeJobFailed,
		},
		{
			name:            "unsupported_statistics_key_is_fatal",
			engine:          &fakeEngine{text: testCleanTextConstant},
			configuration:   merge.ExecutionConfig{CollectStats: true, KeepGoing: true, StatsKeys: []string{merge.StatsKeyNodes}},
			expectError:     mergeerrors.ErrUnsupportedOperation,
			expectFailure:   true,
			expectEventCode: reporting.EventCodeJobFailed,
		},
		{
			name:              "statistics_keys_ignored_without_collection",
			engine:            &fakeEngine{text: testCleanTextConstant},
			configuration:     merge.ExecutionConfig{StatsKeys: []string{merge.StatsKeyNodes}},
			expectEventCode:   reporting.EventCodeJobMerged,
			expectEngineCalls: 1,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			job := writeJob(testInstance, testInstance.TempDir(), testCase.missingLeft)
			observedCore, observedLogs := observer.New(zapcore.DebugLevel)
			var reportOutput bytes.Buffer
			reporter := reporting.NewStructuredReporter(&reportOutput, &reportOutput)
			controller := jobs.NewController(zap.New(observedCore), reporter, output.NewFileSink(nil), benchmark.NewHarness(zap.New(observedCore), nil))

			outcome, processError := controller.Process(context.Background(), job, testCase.configuration, testCase.engine)

			if testCase.expectError != nil {
				require.ErrorIs(testInstance, processError, testCase.expectError)
			} else {
				require.NoError(testInstance, processError)
			}
			require.Equal(testInstance, testCase.expectFailure, !outcome.Succeeded())
			require.Equal(testInstance, testCase.expectEngineCalls, testCase.engine.calls)
			require.Equal(testInstance, 1, reporter.SummaryData().EventCounts[testCase.expectEventCode])

			if testCase.expectFailure {
				require.NotEmpty(testInstance, outcome.Failure.Description)
				require.Equal(testInstance, 1, observedLogs.FilterMessage(testFailedLogMessageConstant).Len())
				return
			}
			require.Equal(testInstance, testCase.expectConflicts, outcome.Analysis.ConflictCount)
			require.Zero(testInstance, observedLogs.FilterMessage(testFailedLogMessageConstant).Len())
		})
	}
}

func TestControllerWritesCanonicalOutput(testInstance *testing.T) {
	directory := testInstance.TempDir()
	job := writeJob(testInstance, directory, false)
	target := filepath.Join(directory, "out", "merged.go")
	controller := jobs.NewController(nil, nil, nil, nil)

	outcome, processError := controller.Process(context.Background(), job, merge.ExecutionConfig{OutputTarget: target}, &fakeEngine{text: testConflictTextConstant})
	require.NoError(testInstance, processError)
	require.True(testInstance, outcome.HasConflicts())

	contents, readError := os.ReadFile(target)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, testCanonicalTextConstant, string(contents))
}

func TestControllerPrefersJobOutputTarget(testInstance *testing.T) {
	directory := testInstance.TempDir()
	jobTarget := filepath.Join(directory, "job.go")
	job := writeJob(testInstance, directory, false).WithOutput(jobTarget)
	controller := jobs.NewController(nil, nil, nil, nil)

	_, processError := controller.Process(context.Background(), job, merge.ExecutionConfig{OutputTarget: filepath.Join(directory, "batch.go")}, &fakeEngine{text: testCleanTextConstant})
	require.NoError(testInstance, processError)

	require.FileExists(testInstance, jobTarget)
	require.NoFileExists(testInstance, filepath.Join(directory, "batch.go"))
}

func TestControllerOutputFailureIsFatalWithKeepGoing(testInstance *testing.T) {
	directory := testInstance.TempDir()
	job := writeJob(testInstance, directory, false)
	controller := jobs.NewController(nil, nil, nil, nil)

	outcome, processError := controller.Process(context.Background(), job, merge.ExecutionConfig{KeepGoing: true, OutputTarget: directory}, &fakeEngine{text: testCleanTextConstant})
	require.ErrorIs(testInstance, processError, mergeerrors.ErrOutputWrite)
	require.False(testInstance, outcome.Succeeded())
}

func TestControllerPassesThroughNodeCounts(testInstance *testing.T) {
	job := writeJob(testInstance, testInstance.TempDir(), false)
	engine := &fakeEngine{
		text:      testCleanTextConstant,
		nodes:     &merge.NodeCounts{Merged: 3},
		statsKeys: []string{merge.StatsKeyFiles, merge.StatsKeyLines, merge.StatsKeyNodes},
	}
	controller := jobs.NewController(nil, nil, nil, nil)

	outcome, processError := controller.Process(context.Background(), job, merge.ExecutionConfig{CollectStats: true, StatsKeys: []string{merge.StatsKeyNodes, merge.StatsKeyDirectories}}, engine)
	require.NoError(testInstance, processError)
	require.Equal(testInstance, &merge.NodeCounts{Merged: 3}, outcome.Nodes)
}

func TestControllerRequiresEngine(testInstance *testing.T) {
	controller := jobs.NewController(nil, nil, nil, nil)
	_, processError := controller.Process(context.Background(), merge.Job{}, merge.ExecutionConfig{}, nil)
	require.ErrorIs(testInstance, processError, jobs.ErrEngineNotConfigured)
}

func writeJob(testInstance *testing.T, directory string, missingLeft bool) merge.Job {
	testInstance.Helper()
	leftPath := filepath.Join(directory, "left.go")
	basePath := filepath.Join(directory, "base.go")
	rightPath := filepath.Join(directory, "right.go")
	if !missingLeft {
		require.NoError(testInstance, os.WriteFile(leftPath, []byte(testCleanTextConstant), 0o644))
	}
	require.NoError(testInstance, os.WriteFile(basePath, []byte(testCleanTextConstant), 0o644))
	require.NoError(testInstance, os.WriteFile(rightPath, []byte(testCleanTextConstant), 0o644))
	return merge.NewJob(merge.FileArtifact(leftPath), merge.FileArtifact(basePath), merge.FileArtifact(rightPath))
}
