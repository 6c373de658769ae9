// Package mcpserver exposes a repository index to model-context-protocol clients.
//
// The adapter holds a read-only reference to the index and registers two tools
// (list_libraries and get_library) and one JSON resource per library plus a
// libraries://index resource listing every record. Serve runs the stdio transport.
package mcpserver
