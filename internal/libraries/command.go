package libraries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/gitlibs/internal/mcpserver"
	"github.com/temirov/gitlibs/internal/repository"
	flagutils "github.com/temirov/gitlibs/internal/utils/flags"
)

const (
	serveCommandUseConstant              = "serve [repository paths...]"
	serveCommandShortDescriptionConstant = "Serve local git repositories to MCP clients over stdio"
	serveCommandLongDescriptionConstant  = "serve probes the provided repository paths (or the configured ones), fails when none is a git repository, and answers MCP requests on standard input and output until the input closes or the process is interrupted."
	listCommandUseConstant               = "list [repository paths...]"
	listCommandShortDescriptionConstant  = "Print the library records the server would advertise"
	listCommandLongDescriptionConstant   = "list probes the provided repository paths (or the configured ones) and prints one record per git repository."
	branchSourceFlagNameConstant         = "branch-source"
	branchSourceFlagDescriptionConstant  = "Branch names reported for each library."
	probeTimeoutFlagNameConstant         = "probe-timeout"
	probeTimeoutFlagDescriptionConstant  = "Maximum time spent inspecting a single path."
	serverNameFlagNameConstant           = "server-name"
	serverNameFlagDescriptionConstant    = "Server name advertised to MCP clients."
	outputFlagNameConstant               = "output"
	outputFlagDescriptionConstant        = "Encoding of the printed records."
	outputFormatJSONConstant             = "json"
	outputFormatYAMLConstant             = "yaml"
	yamlIndentationConstant              = 2
	jsonIndentPrefixConstant             = ""
	jsonIndentConstant                   = "  "
	serveErrorTemplateConstant           = "serve failed: %w"
	listErrorTemplateConstant            = "list failed: %w"
	encodeErrorTemplateConstant          = "encode library records: %w"
	serverStartedMessageConstant         = "library server ready"
	serverShutdownMessageConstant        = "library server shut down"
	logFieldLibraryCountConstant         = "library_count"
	logFieldServerNameConstant           = "server_name"
	logFieldShutdownCauseConstant        = "cause"
	shutdownCauseInputClosedConstant     = "input closed"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider supplies the loaded configuration.
type ConfigurationProvider func() Configuration

// VersionProvider supplies the version advertised to MCP clients.
type VersionProvider func() string

type indexFlagValues struct {
	branchSource *flagutils.ChoiceValue
}

// ServeCommandBuilder assembles the serve command.
type ServeCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	VersionProvider       VersionProvider
	IndexBuilder          IndexBuilder
}

// Build constructs the serve command.
func (builder *ServeCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortDescriptionConstant,
		Long:  serveCommandLongDescriptionConstant,
	}

	flagValues := bindIndexFlags(command.Flags())
	command.Flags().String(serverNameFlagNameConstant, DefaultServerName, serverNameFlagDescriptionConstant)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		return builder.run(command, arguments, flagValues)
	}
	return command, nil
}

func (builder *ServeCommandBuilder) run(command *cobra.Command, arguments []string, flagValues indexFlagValues) error {
	logger := resolveLogger(builder.LoggerProvider)
	configuration := applyIndexFlags(command, resolveConfiguration(builder.ConfigurationProvider), flagValues)
	if command.Flags().Changed(serverNameFlagNameConstant) {
		serverName, _ := command.Flags().GetString(serverNameFlagNameConstant)
		configuration.Server.Name = strings.TrimSpace(serverName)
	}

	signalContext, stopSignals := signal.NotifyContext(commandContext(command), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	indexBuilder := builder.IndexBuilder
	indexBuilder.Logger = logger
	libraryIndex, indexError := indexBuilder.Build(signalContext, arguments, configuration.Repositories)
	if indexError != nil {
		return fmt.Errorf(serveErrorTemplateConstant, indexError)
	}

	librariesServer, serverError := mcpserver.NewServer(libraryIndex, mcpserver.Options{
		Name:    configuration.Server.Name,
		Version: resolveVersion(builder.VersionProvider),
		Logger:  logger,
	})
	if serverError != nil {
		return fmt.Errorf(serveErrorTemplateConstant, serverError)
	}

	logger.Info(
		serverStartedMessageConstant,
		zap.String(logFieldServerNameConstant, librariesServer.Name()),
		zap.Int(logFieldLibraryCountConstant, libraryIndex.Len()),
	)

	serveError := librariesServer.Serve(signalContext, command.InOrStdin(), command.OutOrStdout())
	shutdown(signalContext, logger, librariesServer)
	if serveError != nil {
		return fmt.Errorf(serveErrorTemplateConstant, serveError)
	}
	return nil
}

// shutdown releases signal handling and records why the server stopped.
func shutdown(signalContext context.Context, logger *zap.Logger, librariesServer *mcpserver.Server) {
	shutdownCause := shutdownCauseInputClosedConstant
	if contextError := signalContext.Err(); contextError != nil {
		shutdownCause = contextError.Error()
	}
	logger.Info(
		serverShutdownMessageConstant,
		zap.String(logFieldServerNameConstant, librariesServer.Name()),
		zap.String(logFieldShutdownCauseConstant, shutdownCause),
	)
}

// ListCommandBuilder assembles the list command.
type ListCommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	IndexBuilder          IndexBuilder
}

// Build constructs the list command.
func (builder *ListCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		Long:  listCommandLongDescriptionConstant,
	}

	flagValues := bindIndexFlags(command.Flags())
	outputFormat := flagutils.AddChoiceFlag(
		command.Flags(),
		outputFlagNameConstant,
		outputFormatJSONConstant,
		[]string{outputFormatJSONConstant, outputFormatYAMLConstant},
		outputFlagDescriptionConstant,
	)

	command.RunE = func(command *cobra.Command, arguments []string) error {
		return builder.run(command, arguments, flagValues, outputFormat.String())
	}
	return command, nil
}

func (builder *ListCommandBuilder) run(command *cobra.Command, arguments []string, flagValues indexFlagValues, outputFormat string) error {
	logger := resolveLogger(builder.LoggerProvider)
	configuration := applyIndexFlags(command, resolveConfiguration(builder.ConfigurationProvider), flagValues)

	indexBuilder := builder.IndexBuilder
	indexBuilder.Logger = logger
	libraryIndex, indexError := indexBuilder.Build(commandContext(command), arguments, configuration.Repositories)
	if indexError != nil {
		return fmt.Errorf(listErrorTemplateConstant, indexError)
	}

	libraryRecords, listError := libraryIndex.ListLibraries()
	if listError != nil {
		return fmt.Errorf(listErrorTemplateConstant, listError)
	}

	if encodeError := writeRecords(command.OutOrStdout(), outputFormat, libraryRecords); encodeError != nil {
		return fmt.Errorf(listErrorTemplateConstant, encodeError)
	}
	return nil
}

func writeRecords(output io.Writer, outputFormat string, libraryRecords []repository.LibraryRecord) error {
	switch outputFormat {
	case outputFormatYAMLConstant:
		encoder := yaml.NewEncoder(output)
		encoder.SetIndent(yamlIndentationConstant)
		if encodeError := encoder.Encode(libraryRecords); encodeError != nil {
			return fmt.Errorf(encodeErrorTemplateConstant, encodeError)
		}
		if closeError := encoder.Close(); closeError != nil {
			return fmt.Errorf(encodeErrorTemplateConstant, closeError)
		}
	default:
		encoder := json.NewEncoder(output)
		encoder.SetIndent(jsonIndentPrefixConstant, jsonIndentConstant)
		if encodeError := encoder.Encode(libraryRecords); encodeError != nil {
			return fmt.Errorf(encodeErrorTemplateConstant, encodeError)
		}
	}
	return nil
}

func bindIndexFlags(flagSet *pflag.FlagSet) indexFlagValues {
	branchSource := flagutils.AddChoiceFlag(
		flagSet,
		branchSourceFlagNameConstant,
		string(repository.BranchSourceLocal),
		repository.BranchSourceChoices(),
		branchSourceFlagDescriptionConstant,
	)
	flagSet.Duration(probeTimeoutFlagNameConstant, repository.DefaultProbeTimeout, probeTimeoutFlagDescriptionConstant)
	return indexFlagValues{branchSource: branchSource}
}

// applyIndexFlags overlays explicitly set flags on the configuration.
func applyIndexFlags(command *cobra.Command, configuration Configuration, flagValues indexFlagValues) Configuration {
	if flagValues.branchSource.Changed() {
		configuration.Repositories.BranchSource = flagValues.branchSource.String()
	}
	if command.Flags().Changed(probeTimeoutFlagNameConstant) {
		probeTimeout, _ := command.Flags().GetDuration(probeTimeoutFlagNameConstant)
		configuration.Repositories.ProbeTimeout = probeTimeout
	}
	return configuration.sanitize()
}

func resolveConfiguration(provider ConfigurationProvider) Configuration {
	if provider == nil {
		return DefaultConfiguration()
	}
	return provider()
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}

	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

func resolveVersion(provider VersionProvider) string {
	if provider == nil {
		return ""
	}
	return provider()
}

func commandContext(command *cobra.Command) context.Context {
	if executionContext := command.Context(); executionContext != nil {
		return executionContext
	}
	return context.Background()
}
