// Package libraries wires candidate path normalization, optional remote fetching,
// the repository index and the MCP adapter into the serve and list commands.
package libraries
