// Package mcp serves the gated catalog over the Model Context Protocol,
// on stdio or SSE. The underlying framework holds the full catalog; the
// session proxies decide per request what each client may see and call.
package mcp
