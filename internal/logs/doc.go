// Package logs reads and follows the daemon's log file with bounded memory.
//
// Last returns the final N lines without scanning the whole file, ReadFrom
// resumes at a byte offset, and Follow polls for appended lines until its
// context ends, restarting from the top when the file is truncated or
// replaced by a new run's log.
package logs
