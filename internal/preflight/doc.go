// Package preflight provides readiness checks for the filesystem paths,
// binaries and media sources soundcheck depends on.
//
// The CLI "soundcheck doctor" command runs RunAll and prints one row per
// check. Checks never return errors; failures are reported in Result.Detail.
package preflight
