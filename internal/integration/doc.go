// Package integration holds end-to-end tests that run the real engine
// behind its transports: the HTTP API with its client, and the MCP
// server over an in-memory connection.
package integration
