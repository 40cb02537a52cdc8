package structured_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/treemerge/internal/conflicts"
	"github.com/tyemirov/treemerge/internal/engines/structured"
	mergeerrors "github.com/tyemirov/treemerge/internal/errors"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	testGoBaseConstant = `package sample

import "fmt"

func A() int { return 1 }

func B() int { return 2 }
`
	testGoLeftConstant = `package sample

import "fmt"

func A() int { return 10 }

func B() int { return 2 }

func C() { fmt.Println("c") }
`
	testGoRightConstant = `package sample

import "fmt"

func A() int { return 1 }

func B() int { return 20 }
`
	testGoConflictingRightConstant = `package sample

import "fmt"

func A() int { return 100 }
`
	testGoCleanMergeConstant = "package sample\n\nimport \"fmt\"\n\nfunc A() int { return 10 }\n\nfunc B() int { return 20 }\n\nfunc C() { fmt.Println(\"c\") }\n"
	testPythonBaseConstant   = "def a():\n    return 1\n\n\ndef b():\n    return 2\n"
	testPythonLeftConstant   = "def a():\n    return 1\n\n\ndef b():\n    return 3\n"
	testPythonRightConstant  = "def a():\n    return 1\n\n\ndef b():\n    return 2\n\n\ndef c():\n    return 4\n"
)

func TestStructuredEngineMergesIndependentChanges(testInstance *testing.T) {
	directory := testInstance.TempDir()
	job := writeTriple(testInstance, directory, ".go", testGoBaseConstant, testGoLeftConstant, testGoRightConstant)

	result, buildError := structured.NewEngine(nil).BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, testGoCleanMergeConstant, result.Text)
	require.Equal(testInstance, &merge.NodeCounts{Merged: 5}, result.Nodes)

	analysis := conflicts.Analyze(result.Text)
	require.Zero(testInstance, analysis.ConflictCount)
}

func TestStructuredEngineReportsConflicts(testInstance *testing.T) {
	directory := testInstance.TempDir()
	job := writeTriple(testInstance, directory, ".go", testGoBaseConstant, testGoLeftConstant, testGoConflictingRightConstant)

	result, buildError := structured.NewEngine(nil).BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)

	// A changed on both sides; B changed on neither side but deleted on the right.
	require.Equal(testInstance, 1, result.Nodes.Conflicting)
	require.Contains(testInstance, result.Text, "<<<<<<< left\nfunc A() int { return 10 }\n=======\nfunc A() int { return 100 }\n>>>>>>> right")
	require.NotContains(testInstance, result.Text, "func B")

	analysis := conflicts.Analyze(result.Text)
	require.Equal(testInstance, 1, analysis.ConflictCount)
	require.Equal(testInstance, 2, analysis.ConflictingLines)
}

func TestStructuredEngineMergesPython(testInstance *testing.T) {
	directory := testInstance.TempDir()
	job := writeTriple(testInstance, directory, ".py", testPythonBaseConstant, testPythonLeftConstant, testPythonRightConstant)

	result, buildError := structured.NewEngine(nil).BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, "def a():\n    return 1\n\ndef b():\n    return 3\n\ndef c():\n    return 4\n", result.Text)
	require.Zero(testInstance, result.Nodes.Conflicting)
}

func TestStructuredEngineTwoWayMerge(testInstance *testing.T) {
	directory := testInstance.TempDir()
	leftPath := writeFile(testInstance, directory, "left.go", testGoBaseConstant)
	rightPath := writeFile(testInstance, directory, "right.go", testGoRightConstant)
	job := merge.NewJob(merge.FileArtifact(leftPath), merge.EmptyArtifact(), merge.FileArtifact(rightPath))

	result, buildError := structured.NewEngine(nil).BuildMerge(context.Background(), job)
	require.NoError(testInstance, buildError)
	require.Equal(testInstance, 1, result.Nodes.Conflicting)
	require.Equal(testInstance, 4, result.Nodes.Merged)
}

func TestStructuredEngineFailures(testInstance *testing.T) {
	testCases := []struct {
		name      string
		extension string
		left      string
		expectIs  error
	}{
		{name: "unsupported_extension", extension: ".txt", left: "plain text", expectIs: structured.ErrUnsupportedLanguage},
		{name: "syntax_error", extension: ".go", left: "package sample\n\nfunc (\n"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			job := writeTriple(testInstance, testInstance.TempDir(), testCase.extension, testGoBaseConstant, testCase.left, testGoBaseConstant)

			_, buildError := structured.NewEngine(nil).BuildMerge(context.Background(), job)
			require.ErrorIs(testInstance, buildError, mergeerrors.ErrMergeEngine)
			if testCase.expectIs != nil {
				require.True(testInstance, errors.Is(buildError, testCase.expectIs))
			}
		})
	}
}

func TestStructuredEngineDump(testInstance *testing.T) {
	path := writeFile(testInstance, testInstance.TempDir(), "sample.go", testGoBaseConstant)

	var buffer bytes.Buffer
	require.NoError(testInstance, structured.NewEngine(nil).Dump(context.Background(), merge.FileArtifact(path), &buffer))
	require.Contains(testInstance, buffer.String(), "(source_file")
	require.Contains(testInstance, buffer.String(), "function_declaration")
}

func TestStructuredEngineMetadata(testInstance *testing.T) {
	engine := structured.NewEngine(nil)
	require.Equal(testInstance, structured.StrategyName, engine.Name())
	require.Equal(testInstance, []string{merge.StatsKeyFiles, merge.StatsKeyLines, merge.StatsKeyNodes}, engine.StatsKeys())
	require.Equal(testInstance, []string{".go", ".py", ".rs", ".ts", ".tsx"}, engine.Extensions())
}

func writeTriple(testInstance *testing.T, directory string, extension string, base string, left string, right string) merge.Job {
	testInstance.Helper()
	basePath := writeFile(testInstance, directory, "base"+extension, base)
	leftPath := writeFile(testInstance, directory, "left"+extension, left)
	rightPath := writeFile(testInstance, directory, "right"+extension, right)
	return merge.NewJob(merge.FileArtifact(leftPath), merge.FileArtifact(basePath), merge.FileArtifact(rightPath))
}

func writeFile(testInstance *testing.T, directory string, name string, content string) string {
	testInstance.Helper()
	path := filepath.Join(directory, name)
	require.NoError(testInstance, os.WriteFile(path, []byte(content), 0o644))
	return path
}
