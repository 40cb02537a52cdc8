package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/treemerge/internal/batch"
	"github.com/tyemirov/treemerge/internal/merge"
)

const (
	documentationFileNameConstant      = "ARCHITECTURE.md"
	yamlFenceStartConstant             = "```yaml"
	yamlFenceEndConstant               = "```"
	configHeaderMarkerConstant         = "# config.yaml"
	jobsHeaderMarkerConstant           = "# jobs.yaml"
	jobsFileNameConstant               = "jobs.yaml"
	parentDirectoryReferenceConstant   = ".."
	missingHeaderMessageTemplate       = "architecture example missing %s marker"
	unexpectedOperationMessageTemplate = "unexpected command %s"
	duplicateOperationMessageTemplate  = "duplicate command %s"
)

var expectedCommandOperations = map[string]struct{}{
	"merge": {},
	"dump":  {},
}

type documentedApplicationConfiguration struct {
	Common struct {
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"common"`
	Operations []documentedOperationConfiguration `yaml:"operations"`
}

type documentedOperationConfiguration struct {
	Command []string       `yaml:"command"`
	Options map[string]any `yaml:"with"`
}

func TestArchitectureConfigurationParses(testInstance *testing.T) {
	snippet := extractSnippet(testInstance, configHeaderMarkerConstant)

	var configuration documentedApplicationConfiguration
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippet), &configuration))
	require.NotEmpty(testInstance, configuration.Common.LogLevel)
	require.Len(testInstance, configuration.Operations, len(expectedCommandOperations))

	seenOperations := make(map[string]struct{}, len(configuration.Operations))
	for _, operation := range configuration.Operations {
		normalizedName := strings.ToLower(strings.Join(operation.Command, " "))
		_, expected := expectedCommandOperations[normalizedName]
		require.Truef(testInstance, expected, unexpectedOperationMessageTemplate, normalizedName)

		_, duplicate := seenOperations[normalizedName]
		require.Falsef(testInstance, duplicate, duplicateOperationMessageTemplate, normalizedName)
		seenOperations[normalizedName] = struct{}{}
	}
}

func TestArchitectureBatchFileLoads(testInstance *testing.T) {
	snippet := extractSnippet(testInstance, jobsHeaderMarkerConstant)

	directory := testInstance.TempDir()
	jobsPath := filepath.Join(directory, jobsFileNameConstant)
	require.NoError(testInstance, os.WriteFile(jobsPath, []byte(snippet), 0o600))

	loadedJobs, loadError := batch.LoadJobsFile(jobsPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, loadedJobs, 2)

	require.Equal(testInstance, merge.KindThreeWay, loadedJobs[0].Kind())
	require.Equal(testInstance, filepath.Join(directory, "left", "service.go"), loadedJobs[0].Left().Path)
	require.Equal(testInstance, filepath.Join(directory, "merged", "service.go"), loadedJobs[0].Output())
	require.Equal(testInstance, merge.KindTwoWay, loadedJobs[1].Kind())
}

func extractSnippet(testingInstance testing.TB, headerMarker string) string {
	testingInstance.Helper()

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testingInstance, workingDirectoryError)

	contentBytes, readError := os.ReadFile(filepath.Join(workingDirectory, parentDirectoryReferenceConstant, documentationFileNameConstant))
	require.NoError(testingInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, headerMarker)
	require.NotEqualf(testingInstance, -1, headerIndex, missingHeaderMessageTemplate, headerMarker)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testingInstance, -1, fenceStartIndex)

	fenceEndRelativeIndex := strings.Index(contentText[headerIndex:], yamlFenceEndConstant)
	require.NotEqual(testingInstance, -1, fenceEndRelativeIndex)

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : headerIndex+fenceEndRelativeIndex])
}
