// Package mcp sends script text to a running BlenderMCP host and reports the outcome.
//
// Ownership boundary:
// - one TCP connection per call, request line written in full
// - chunked response read bounded by a timeout, heartbeats while waiting
// - classification into unreachable / timeout / malformed / remote error
// - whole-script retry for timeouts (scripts are not idempotent)
// - optional SSH tunnel when the host runs on another machine
package mcp
