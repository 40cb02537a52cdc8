package batch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/treemerge/internal/batch"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	testBatchFileNameConstant = "jobs.yaml"
	testBatchContentConstant  = `jobs:
  - left: left/a.go
    base: base/a.go
    right: right/a.go
    output: out/a.go
  - left: /abs/left.py
    right: /abs/right.py
`
)

func TestLoadJobsFileResolvesEntries(testInstance *testing.T) {
	directory := testInstance.TempDir()
	batchPath := filepath.Join(directory, testBatchFileNameConstant)
	require.NoError(testInstance, os.WriteFile(batchPath, []byte(testBatchContentConstant), 0o644))

	jobs, loadError := batch.LoadJobsFile(batchPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, jobs, 2)

	require.Equal(testInstance, merge.KindThreeWay, jobs[0].Kind())
	require.Equal(testInstance, filepath.Join(directory, "left/a.go"), jobs[0].Left().Path)
	require.Equal(testInstance, filepath.Join(directory, "base/a.go"), jobs[0].Base().Path)
	require.Equal(testInstance, filepath.Join(directory, "right/a.go"), jobs[0].Right().Path)
	require.Equal(testInstance, filepath.Join(directory, "out/a.go"), jobs[0].Output())

	require.Equal(testInstance, merge.KindTwoWay, jobs[1].Kind())
	require.True(testInstance, jobs[1].Base().Empty)
	require.Equal(testInstance, "/abs/left.py", jobs[1].Left().Path)
	require.Empty(testInstance, jobs[1].Output())
}

func TestLoadJobsFileRejectsInvalidContent(testInstance *testing.T) {
	testCases := []struct {
		name    string
		content *string
	}{
		{name: "missing_file"},
		{name: "malformed_yaml", content: stringPointer("jobs: [")},
		{name: "no_jobs", content: stringPointer("jobs: []\n")},
		{name: "missing_right", content: stringPointer("jobs:\n  - left: a.go\n")},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			batchPath := filepath.Join(testInstance.TempDir(), testBatchFileNameConstant)
			if testCase.content != nil {
				require.NoError(testInstance, os.WriteFile(batchPath, []byte(*testCase.content), 0o644))
			}

			jobs, loadError := batch.LoadJobsFile(batchPath)
			require.ErrorIs(testInstance, loadError, mergeerrors.ErrInvalidJob)
			require.Nil(testInstance, jobs)
		})
	}
}

func stringPointer(value string) *string {
	return &value
}
