// Package main hosts the soundcheck CLI entrypoint and command graph.
//
// Commands either run a gateway in-process (task, fingerprint, compare,
// reference) or talk to a running daemon over its Unix socket (status, and
// task --daemon). Task results print as JSON on stdout; logs go to stderr.
package main
