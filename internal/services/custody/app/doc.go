// Package app wires the custody engine to its storage driver, lock backend,
// MCP transport and gRPC health endpoint, and runs them until the context
// ends.
package app
