package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/temirov/gitlibs/internal/repository"
)

const (
	// ListLibrariesToolName lists every indexed library.
	ListLibrariesToolName = "list_libraries"
	// GetLibraryToolName returns a single library by name.
	GetLibraryToolName = "get_library"
	// LibraryNameArgument is the get_library argument carrying the library name.
	LibraryNameArgument = "name"
	// IndexResourceURI addresses the resource listing every library.
	IndexResourceURI = "libraries://index"

	defaultServerVersionConstant       = "dev"
	libraryResourceSchemeConstant      = "repo://"
	libraryResourceNamePrefixConstant  = "Git repository: "
	libraryResourceDescriptionTemplate = "Metadata of the git repository at %s"
	indexResourceNameConstant          = "Library index"
	indexResourceDescriptionConstant   = "Metadata of every indexed git repository"
	jsonMIMETypeConstant               = "application/json"
	duplicateSuffixSeparatorConstant   = "-"
	listLibrariesDescriptionConstant   = "List the indexed git repositories with their name, path and branches."
	getLibraryDescriptionConstant      = "Return the indexed git repository with the given name."
	libraryNameArgumentDescription     = "Library name as reported by list_libraries"
	serverNameRequiredMessageConstant  = "server name is required"
	indexRequiredMessageConstant       = "repository index is required"
	libraryNotFoundMessageConstant     = "library not found"
	libraryNotFoundTemplateConstant    = "%w: %s"
	resourceNotFoundTemplateConstant   = "unknown resource %s"
	encodeErrorTemplateConstant        = "encode library metadata: %w"
	toolErrorTemplateConstant          = "Error: %v"
	missingArgumentTemplateConstant    = "Error: %s parameter is required"
	serveStartedMessageConstant        = "serving libraries over stdio"
	serveStoppedMessageConstant        = "stdio transport stopped"
	toolInvokedMessageConstant         = "tool invoked"
	resourceReadMessageConstant        = "resource read"
	logFieldServerNameConstant         = "server_name"
	logFieldLibraryCountConstant       = "library_count"
	logFieldToolConstant               = "tool"
	logFieldResourceURIConstant        = "uri"
	jsonIndentPrefixConstant           = ""
	jsonIndentConstant                 = "  "
)

var (
	// ErrServerNameRequired reports an empty server name.
	ErrServerNameRequired = errors.New(serverNameRequiredMessageConstant)
	// ErrIndexRequired reports a nil index.
	ErrIndexRequired = errors.New(indexRequiredMessageConstant)
	// ErrLibraryNotFound reports a lookup of an unknown library name.
	ErrLibraryNotFound = errors.New(libraryNotFoundMessageConstant)
)

// LibraryIndex is the read-only view of a repository index the adapter consumes.
type LibraryIndex interface {
	ListLibraries() ([]repository.LibraryRecord, error)
}

// Options configures the adapter.
type Options struct {
	Name    string
	Version string
	Logger  *zap.Logger
}

// Server adapts a LibraryIndex to the MCP tool and resource surface.
type Server struct {
	index        LibraryIndex
	name         string
	logger       *zap.Logger
	mcpServer    *server.MCPServer
	resourceURIs []string
	recordsByURI map[string]repository.LibraryRecord
}

// NewServer validates the options, snapshots the index and registers tools and resources.
func NewServer(index LibraryIndex, options Options) (*Server, error) {
	serverName := strings.TrimSpace(options.Name)
	if len(serverName) == 0 {
		return nil, ErrServerNameRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	libraryRecords, listError := index.ListLibraries()
	if listError != nil {
		return nil, listError
	}

	serverVersion := strings.TrimSpace(options.Version)
	if len(serverVersion) == 0 {
		serverVersion = defaultServerVersionConstant
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	adapter := &Server{
		index:  index,
		name:   serverName,
		logger: logger,
		mcpServer: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithLogging(),
		),
		recordsByURI: make(map[string]repository.LibraryRecord, len(libraryRecords)),
	}

	adapter.registerTools()
	adapter.registerResources(libraryRecords)
	return adapter, nil
}

// Name returns the advertised server name.
func (adapter *Server) Name() string {
	return adapter.name
}

// ResourceURIs returns the per-library resource URIs in index order.
func (adapter *Server) ResourceURIs() []string {
	return append([]string(nil), adapter.resourceURIs...)
}

// Serve runs the stdio transport until the input is exhausted or the context is canceled.
func (adapter *Server) Serve(executionContext context.Context, input io.Reader, output io.Writer) error {
	stdioServer := server.NewStdioServer(adapter.mcpServer)
	stdioServer.SetErrorLogger(zap.NewStdLog(adapter.logger))

	adapter.logger.Info(serveStartedMessageConstant, zap.String(logFieldServerNameConstant, adapter.name), zap.Int(logFieldLibraryCountConstant, len(adapter.resourceURIs)))
	listenError := stdioServer.Listen(executionContext, input, output)
	adapter.logger.Info(serveStoppedMessageConstant, zap.String(logFieldServerNameConstant, adapter.name))

	if listenError == nil || errors.Is(listenError, context.Canceled) || errors.Is(listenError, io.EOF) {
		return nil
	}
	return listenError
}

func (adapter *Server) registerTools() {
	adapter.mcpServer.AddTool(
		mcp.NewTool(ListLibrariesToolName, mcp.WithDescription(listLibrariesDescriptionConstant)),
		adapter.handleListLibraries,
	)
	adapter.mcpServer.AddTool(
		mcp.NewTool(
			GetLibraryToolName,
			mcp.WithDescription(getLibraryDescriptionConstant),
			mcp.WithString(LibraryNameArgument,
				mcp.Description(libraryNameArgumentDescription),
				mcp.Required(),
			),
		),
		adapter.handleGetLibrary,
	)
}

func (adapter *Server) registerResources(libraryRecords []repository.LibraryRecord) {
	nameOccurrences := make(map[string]int, len(libraryRecords))
	for _, libraryRecord := range libraryRecords {
		nameOccurrences[libraryRecord.Name]++
		resourceName := libraryRecord.Name
		if occurrence := nameOccurrences[libraryRecord.Name]; occurrence > 1 {
			resourceName = libraryRecord.Name + duplicateSuffixSeparatorConstant + strconv.Itoa(occurrence)
		}

		resourceURI := libraryResourceSchemeConstant + resourceName
		adapter.resourceURIs = append(adapter.resourceURIs, resourceURI)
		adapter.recordsByURI[resourceURI] = libraryRecord

		adapter.mcpServer.AddResource(
			mcp.NewResource(
				resourceURI,
				libraryResourceNamePrefixConstant+libraryRecord.Name,
				mcp.WithResourceDescription(fmt.Sprintf(libraryResourceDescriptionTemplate, libraryRecord.Path)),
				mcp.WithMIMEType(jsonMIMETypeConstant),
			),
			adapter.handleReadLibrary,
		)
	}

	adapter.mcpServer.AddResource(
		mcp.NewResource(
			IndexResourceURI,
			indexResourceNameConstant,
			mcp.WithResourceDescription(indexResourceDescriptionConstant),
			mcp.WithMIMEType(jsonMIMETypeConstant),
		),
		adapter.handleReadIndex,
	)
}

func (adapter *Server) handleListLibraries(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	adapter.logger.Debug(toolInvokedMessageConstant, zap.String(logFieldToolConstant, ListLibrariesToolName))

	libraryRecords, listError := adapter.index.ListLibraries()
	if listError != nil {
		return toolError(fmt.Sprintf(toolErrorTemplateConstant, listError)), nil
	}

	encodedRecords, encodeError := encodeJSON(libraryRecords)
	if encodeError != nil {
		return toolError(fmt.Sprintf(toolErrorTemplateConstant, encodeError)), nil
	}
	return toolText(encodedRecords), nil
}

func (adapter *Server) handleGetLibrary(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	adapter.logger.Debug(toolInvokedMessageConstant, zap.String(logFieldToolConstant, GetLibraryToolName))

	libraryName, _ := request.Params.Arguments[LibraryNameArgument].(string)
	libraryName = strings.TrimSpace(libraryName)
	if len(libraryName) == 0 {
		return toolError(fmt.Sprintf(missingArgumentTemplateConstant, LibraryNameArgument)), nil
	}

	libraryRecord, lookupError := adapter.findLibrary(libraryName)
	if lookupError != nil {
		return toolError(fmt.Sprintf(toolErrorTemplateConstant, lookupError)), nil
	}

	encodedRecord, encodeError := encodeJSON(libraryRecord)
	if encodeError != nil {
		return toolError(fmt.Sprintf(toolErrorTemplateConstant, encodeError)), nil
	}
	return toolText(encodedRecord), nil
}

func (adapter *Server) handleReadLibrary(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	resourceURI := request.Params.URI
	adapter.logger.Debug(resourceReadMessageConstant, zap.String(logFieldResourceURIConstant, resourceURI))

	libraryRecord, known := adapter.recordsByURI[resourceURI]
	if !known {
		return nil, fmt.Errorf(resourceNotFoundTemplateConstant, resourceURI)
	}

	encodedRecord, encodeError := encodeJSON(libraryRecord)
	if encodeError != nil {
		return nil, encodeError
	}
	return []mcp.ResourceContents{jsonContents(resourceURI, encodedRecord)}, nil
}

func (adapter *Server) handleReadIndex(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	adapter.logger.Debug(resourceReadMessageConstant, zap.String(logFieldResourceURIConstant, request.Params.URI))

	libraryRecords, listError := adapter.index.ListLibraries()
	if listError != nil {
		return nil, listError
	}

	encodedRecords, encodeError := encodeJSON(libraryRecords)
	if encodeError != nil {
		return nil, encodeError
	}
	return []mcp.ResourceContents{jsonContents(IndexResourceURI, encodedRecords)}, nil
}

// findLibrary returns the first record in index order carrying the name.
func (adapter *Server) findLibrary(libraryName string) (repository.LibraryRecord, error) {
	libraryRecords, listError := adapter.index.ListLibraries()
	if listError != nil {
		return repository.LibraryRecord{}, listError
	}
	for _, libraryRecord := range libraryRecords {
		if libraryRecord.Name == libraryName {
			return libraryRecord, nil
		}
	}
	return repository.LibraryRecord{}, fmt.Errorf(libraryNotFoundTemplateConstant, ErrLibraryNotFound, libraryName)
}

func encodeJSON(value any) (string, error) {
	encodedValue, marshalError := json.MarshalIndent(value, jsonIndentPrefixConstant, jsonIndentConstant)
	if marshalError != nil {
		return "", fmt.Errorf(encodeErrorTemplateConstant, marshalError)
	}
	return string(encodedValue), nil
}

func jsonContents(resourceURI string, text string) mcp.TextResourceContents {
	return mcp.TextResourceContents{
		URI:      resourceURI,
		MIMEType: jsonMIMETypeConstant,
		Text:     text,
	}
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}, IsError: true}
}
