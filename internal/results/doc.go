// Package results accumulates the step, action, navigation timing and request
// records reported by a test run and writes them out as results.json.
//
// A Sink lives for one run. Records are free-form JSON and stored as given;
// only a step's "status" (and "name" when present) is interpreted, to build
// the summary and the history rows. Flush rewrites the whole report each time,
// so a run that flushes twice leaves the later, larger report on disk.
//
// History persists flushed runs in SQLite so `soundcheck results history` can
// show previous runs. It is optional; a Sink without one only writes JSON.
package results
