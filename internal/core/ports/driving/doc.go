// Package driving holds the use-case interfaces the CLI and the MCP server
// call into: asking, searching, ingesting, and managing documents and
// search spaces. internal/core/services implements all of them.
package driving
