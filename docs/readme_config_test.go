package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitlibs/internal/libraries"
	"github.com/temirov/gitlibs/internal/repository"
	"github.com/temirov/gitlibs/internal/utils"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	readmeSnippetTemporaryPattern    = "readme-config-*.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
	defaultTempDirectoryRootConstant = ""
	testEnvironmentPrefixConstant    = "GITLIBSREADME"
)

var expectedTopLevelSections = []string{"common", "repositories", "server"}

type readmeConfiguration struct {
	Common struct {
		LogLevel  string `mapstructure:"log_level"`
		LogFormat string `mapstructure:"log_format"`
	} `mapstructure:"common"`
	Server       libraries.ServerConfiguration       `mapstructure:"server"`
	Repositories libraries.RepositoriesConfiguration `mapstructure:"repositories"`
}

func readmeSnippet(testInstance *testing.T) string {
	testInstance.Helper()

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	contentBytes, readError := os.ReadFile(filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant))
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	fenceEndRelativeIndex := strings.Index(contentText[headerIndex:], yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : headerIndex+fenceEndRelativeIndex])
}

func TestReadmeConfigurationParses(testInstance *testing.T) {
	snippetContent := readmeSnippet(testInstance)

	var rawSections map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippetContent), &rawSections))
	sectionNames := make([]string, 0, len(rawSections))
	for sectionName := range rawSections {
		sectionNames = append(sectionNames, sectionName)
	}
	require.ElementsMatch(testInstance, expectedTopLevelSections, sectionNames)

	tempFile, tempFileError := os.CreateTemp(defaultTempDirectoryRootConstant, readmeSnippetTemporaryPattern)
	require.NoError(testInstance, tempFileError)
	testInstance.Cleanup(func() {
		require.NoError(testInstance, os.Remove(tempFile.Name()))
	})
	_, writeError := tempFile.WriteString(snippetContent)
	require.NoError(testInstance, writeError)
	require.NoError(testInstance, tempFile.Close())

	configurationLoader := utils.NewConfigurationLoader("config", "yaml", testEnvironmentPrefixConstant, nil)
	var loadedConfiguration readmeConfiguration
	_, loadError := configurationLoader.LoadConfiguration(tempFile.Name(), nil, &loadedConfiguration)
	require.NoError(testInstance, loadError)

	_, branchSourceError := repository.ParseBranchSource(loadedConfiguration.Repositories.BranchSource)
	require.NoError(testInstance, branchSourceError)
	require.Equal(testInstance, 10*time.Second, loadedConfiguration.Repositories.ProbeTimeout)
	require.Equal(testInstance, libraries.DefaultServerName, loadedConfiguration.Server.Name)
	require.Equal(testInstance, libraries.DefaultCloneDirectory, loadedConfiguration.Repositories.Fetch.CloneDirectory)
	require.NotEmpty(testInstance, loadedConfiguration.Repositories.Paths)
	require.NotEmpty(testInstance, loadedConfiguration.Repositories.Fetch.Sources)

	_, levelError := utils.NewLoggerFactory().CreateLogger(
		utils.NormalizeLogLevel(loadedConfiguration.Common.LogLevel),
		utils.NormalizeLogFormat(loadedConfiguration.Common.LogFormat),
	)
	require.NoError(testInstance, levelError)
}
