// Package session owns call timing against the host.
//
// Ownership boundary:
// - connect/read/heartbeat timing defaults and the debug profile
// - retry/backoff primitives for whole-script re-execution
package session
