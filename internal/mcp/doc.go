// Package mcp exposes the tiered-memory engine to agents over the MCP
// stdio transport.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers memory_answer, memory_summarize, and memory_stats tools
// that call the engine directly.
package mcp
