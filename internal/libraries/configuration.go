package libraries

import (
	"strings"
	"time"

	"github.com/temirov/gitlibs/internal/repository"
)

const (
	// DefaultServerName is advertised to MCP clients when no name is configured.
	DefaultServerName = "gitlibs"
	// DefaultCloneDirectory receives repositories fetched from remote sources.
	DefaultCloneDirectory = "~/.cache/gitlibs/repositories"

	serverNameKeyConstant            = "name"
	pathsKeyConstant                 = "paths"
	branchSourceKeyConstant          = "branch_source"
	probeTimeoutKeyConstant          = "probe_timeout"
	probeParallelismKeyConstant      = "probe_parallelism"
	fetchCloneDirectoryKeyConstant   = "fetch.clone_directory"
	fetchSourcesKeyConstant          = "fetch.sources"
	configurationKeySeparatorLiteral = "."
)

// Configuration groups the server and repository settings consumed by the commands.
type Configuration struct {
	Server       ServerConfiguration       `mapstructure:"server"`
	Repositories RepositoriesConfiguration `mapstructure:"repositories"`
}

// ServerConfiguration describes how the MCP server identifies itself.
type ServerConfiguration struct {
	Name string `mapstructure:"name"`
}

// RepositoriesConfiguration lists the candidate repositories and how they are probed.
type RepositoriesConfiguration struct {
	Paths            []string           `mapstructure:"paths"`
	BranchSource     string             `mapstructure:"branch_source"`
	ProbeTimeout     time.Duration      `mapstructure:"probe_timeout"`
	ProbeParallelism int                `mapstructure:"probe_parallelism"`
	Fetch            FetchConfiguration `mapstructure:"fetch"`
}

// FetchConfiguration lists remote repositories cloned or updated before probing.
type FetchConfiguration struct {
	CloneDirectory string   `mapstructure:"clone_directory"`
	Sources        []string `mapstructure:"sources"`
}

// DefaultConfiguration provides baseline configuration values.
func DefaultConfiguration() Configuration {
	return Configuration{
		Server: ServerConfiguration{Name: DefaultServerName},
		Repositories: RepositoriesConfiguration{
			Paths:            []string{},
			BranchSource:     string(repository.BranchSourceLocal),
			ProbeTimeout:     repository.DefaultProbeTimeout,
			ProbeParallelism: repository.DefaultProbeParallelism,
			Fetch: FetchConfiguration{
				CloneDirectory: DefaultCloneDirectory,
				Sources:        []string{},
			},
		},
	}
}

// DefaultConfigurationValues flattens DefaultConfiguration into Viper keys under the given section names.
func DefaultConfigurationValues(serverSection string, repositoriesSection string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		joinKey(serverSection, serverNameKeyConstant):                defaults.Server.Name,
		joinKey(repositoriesSection, pathsKeyConstant):               defaults.Repositories.Paths,
		joinKey(repositoriesSection, branchSourceKeyConstant):        defaults.Repositories.BranchSource,
		joinKey(repositoriesSection, probeTimeoutKeyConstant):        defaults.Repositories.ProbeTimeout.String(),
		joinKey(repositoriesSection, probeParallelismKeyConstant):    defaults.Repositories.ProbeParallelism,
		joinKey(repositoriesSection, fetchCloneDirectoryKeyConstant): defaults.Repositories.Fetch.CloneDirectory,
		joinKey(repositoriesSection, fetchSourcesKeyConstant):        defaults.Repositories.Fetch.Sources,
	}
}

// sanitize trims textual values and fills unset fields with defaults.
func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Server.Name = strings.TrimSpace(configuration.Server.Name)
	if len(sanitized.Server.Name) == 0 {
		sanitized.Server.Name = defaults.Server.Name
	}

	sanitized.Repositories.BranchSource = strings.TrimSpace(configuration.Repositories.BranchSource)
	if sanitized.Repositories.ProbeTimeout == 0 {
		sanitized.Repositories.ProbeTimeout = defaults.Repositories.ProbeTimeout
	}
	if sanitized.Repositories.ProbeParallelism <= 0 {
		sanitized.Repositories.ProbeParallelism = defaults.Repositories.ProbeParallelism
	}

	sanitized.Repositories.Fetch.CloneDirectory = strings.TrimSpace(configuration.Repositories.Fetch.CloneDirectory)
	if len(sanitized.Repositories.Fetch.CloneDirectory) == 0 {
		sanitized.Repositories.Fetch.CloneDirectory = defaults.Repositories.Fetch.CloneDirectory
	}
	sanitized.Repositories.Fetch.Sources = nonBlankValues(configuration.Repositories.Fetch.Sources)

	return sanitized
}

func nonBlankValues(rawValues []string) []string {
	values := make([]string, 0, len(rawValues))
	for _, rawValue := range rawValues {
		trimmedValue := strings.TrimSpace(rawValue)
		if len(trimmedValue) == 0 {
			continue
		}
		values = append(values, trimmedValue)
	}
	return values
}

func joinKey(section string, key string) string {
	if len(section) == 0 {
		return key
	}
	return section + configurationKeySeparatorLiteral + key
}
