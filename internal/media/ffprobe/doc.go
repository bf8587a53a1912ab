// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio assets.
//
// Inspect runs ffprobe against a path or URL and returns a Result; helpers on
// Result expose the container duration and the first audio stream's sample
// rate and channel layout. Missing or malformed numbers read as zero.
package ffprobe
