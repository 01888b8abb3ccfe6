// Package mcp implements the Model Context Protocol (MCP) server for
// vecsync.
//
// The server exposes three tools to AI assistants over stdio:
//   - sync_folder: incrementally synchronize a folder into the vector index
//   - search_index: query the index with natural language
//   - index_status: report file and chunk counts for a folder
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	vecsync serve
//
// It then listens on stdin for protocol messages and writes responses to
// stdout; all logging goes to stderr so the protocol stream stays clean.
package mcp
