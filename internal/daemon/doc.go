// Package daemon hosts the gateway as a long-running soundcheck process.
//
// It enforces single-instance execution with a flock-based lock in the state
// directory and serves the HTTP task API (POST /api/tasks/{name}, GET
// /api/status). The JSON-RPC socket lives in package ipc and wraps a Daemon.
//
// Keep task semantics in package gateway; the daemon only owns startup,
// shutdown and transport concerns.
package daemon
