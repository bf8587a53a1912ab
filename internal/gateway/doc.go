// Package gateway exposes the fingerprint engine as named tasks for the
// browser test suite.
//
// Every operation returns a value and never an error: a missing reference,
// an unreachable stream or a decoder crash becomes the operation's sentinel
// (a nil vector, {ok:false,error} or a zero score) so one bad scenario cannot
// abort the caller's whole run. Failures are logged with the task name
// attached. Dispatch routes a task name and raw JSON payload to the matching
// operation; its only error is ErrUnknownTask.
//
// The results tasks (recordStep and friends) forward to a results.Sink. They
// are served here so the suite can use one endpoint for everything.
package gateway
