// Package ipc exposes the gateway over JSON-RPC on a Unix domain socket and
// ships the matching client used by the CLI.
//
// Each gateway operation has a typed method on the "Tasks" service. Invoke
// runs any task by name with a raw JSON payload, which is what the CLI task
// command uses. Operation fallbacks travel as JSON null; RPC errors are
// reserved for transport problems and unknown task names.
package ipc
