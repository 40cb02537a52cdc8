package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/treemerge/internal/utils"
)

const (
	testEnvironmentPrefixConstant     = "TESTTREEMERGE"
	testLogLevelKeyConstant           = "common.log_level"
	testLogLevelEnvironmentConstant   = "TESTTREEMERGE_COMMON_LOG_LEVEL"
	testConfigurationNameConstant     = "config"
	testConfigurationTypeConstant     = "yaml"
	testConfigFileNameConstant        = "config.yaml"
	testEmbeddedConfigurationConstant = "common:\n  log_level: warn\noperations:\n  - command: [\"merge\"]\n    with:\n      strategy: linebased\n      workers: 1\n"
	testFileConfigurationConstant     = "common:\n  log_level: debug\noperations:\n  - command: [\"merge\"]\n    with:\n      strategy: structured\n      workers: 8\n"
	testSearchConfigurationConstant   = "common:\n  log_level: info\n"
)

type configurationFixture struct {
	Common struct {
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"common"`
	Operations []struct {
		Command []string       `mapstructure:"command"`
		Options map[string]any `mapstructure:"with"`
	} `mapstructure:"operations"`
}

func TestConfigurationLoaderLayering(testInstance *testing.T) {
	testCases := []struct {
		name             string
		embedded         string
		file             string
		environment      string
		expectedLevel    string
		expectedStrategy string
	}{
		{name: "DefaultsOnly", expectedLevel: "error"},
		{name: "EmbeddedOverDefaults", embedded: testEmbeddedConfigurationConstant, expectedLevel: "warn", expectedStrategy: "linebased"},
		{name: "FileOverEmbedded", embedded: testEmbeddedConfigurationConstant, file: testFileConfigurationConstant, expectedLevel: "debug", expectedStrategy: "structured"},
		{name: "EnvironmentOverFile", embedded: testEmbeddedConfigurationConstant, file: testFileConfigurationConstant, environment: "info", expectedLevel: "info", expectedStrategy: "structured"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(t *testing.T) {
			searchDirectory := t.TempDir()
			if len(testCase.file) > 0 {
				writeConfiguration(t, filepath.Join(searchDirectory, testConfigFileNameConstant), testCase.file)
			}
			if len(testCase.environment) > 0 {
				t.Setenv(testLogLevelEnvironmentConstant, testCase.environment)
			}

			loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{searchDirectory})
			if len(testCase.embedded) > 0 {
				loader.SetEmbeddedConfiguration([]byte(testCase.embedded), testConfigurationTypeConstant)
			}

			var loaded configurationFixture
			metadata, loadError := loader.LoadConfiguration("", map[string]any{testLogLevelKeyConstant: "error"}, &loaded)
			require.NoError(t, loadError)
			require.Equal(t, testCase.expectedLevel, loaded.Common.LogLevel)

			if len(testCase.file) > 0 {
				require.Equal(t, filepath.Join(searchDirectory, testConfigFileNameConstant), metadata.ConfigFileUsed)
			} else {
				require.Empty(t, metadata.ConfigFileUsed)
			}

			if len(testCase.expectedStrategy) == 0 {
				require.Empty(t, loaded.Operations)
				return
			}
			require.Len(t, loaded.Operations, 1)
			require.Equal(t, []string{"merge"}, loaded.Operations[0].Command)
			require.Equal(t, testCase.expectedStrategy, loaded.Operations[0].Options["strategy"])
		})
	}
}

func TestConfigurationLoaderSearchOrder(testInstance *testing.T) {
	firstDirectory := testInstance.TempDir()
	secondDirectory := testInstance.TempDir()
	writeConfiguration(testInstance, filepath.Join(secondDirectory, testConfigFileNameConstant), testSearchConfigurationConstant)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(firstDirectory, testConfigFileNameConstant), 0o755))

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{"", firstDirectory, secondDirectory})

	var loaded configurationFixture
	metadata, loadError := loader.LoadConfiguration("", nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "info", loaded.Common.LogLevel)
	require.Equal(testInstance, filepath.Join(secondDirectory, testConfigFileNameConstant), metadata.ConfigFileUsed)

	writeConfiguration(testInstance, filepath.Join(firstDirectory+"-preferred", testConfigFileNameConstant), testFileConfigurationConstant)
	preferredLoader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{firstDirectory + "-preferred", secondDirectory})
	metadata, loadError = preferredLoader.LoadConfiguration("", nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "debug", loaded.Common.LogLevel)
	require.Equal(testInstance, filepath.Join(firstDirectory+"-preferred", testConfigFileNameConstant), metadata.ConfigFileUsed)
}

func TestConfigurationLoaderExplicitFileOverridesSearchPaths(testInstance *testing.T) {
	searchDirectory := testInstance.TempDir()
	writeConfiguration(testInstance, filepath.Join(searchDirectory, testConfigFileNameConstant), testSearchConfigurationConstant)
	explicitPath := filepath.Join(testInstance.TempDir(), "custom.yaml")
	writeConfiguration(testInstance, explicitPath, testFileConfigurationConstant)

	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, []string{searchDirectory})

	var loaded configurationFixture
	metadata, loadError := loader.LoadConfiguration(explicitPath, nil, &loaded)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, "debug", loaded.Common.LogLevel)
	require.Equal(testInstance, explicitPath, metadata.ConfigFileUsed)
}

func TestConfigurationLoaderErrors(testInstance *testing.T) {
	loader := utils.NewConfigurationLoader(testConfigurationNameConstant, testConfigurationTypeConstant, testEnvironmentPrefixConstant, nil)

	var loaded configurationFixture
	_, missingError := loader.LoadConfiguration(filepath.Join(testInstance.TempDir(), "absent.yaml"), nil, &loaded)
	require.Error(testInstance, missingError)

	loader.SetEmbeddedConfiguration([]byte("common: [unterminated"), testConfigurationTypeConstant)
	_, embeddedError := loader.LoadConfiguration("", nil, &loaded)
	require.Error(testInstance, embeddedError)
}

func writeConfiguration(testingInstance testing.TB, path string, content string) {
	testingInstance.Helper()
	require.NoError(testingInstance, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(testingInstance, os.WriteFile(path, []byte(content), 0o600))
}
