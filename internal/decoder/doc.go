// Package decoder turns a media source into mono PCM for fingerprinting.
//
// A Source is either a local path or an HTTP(S) URL (plain files as well as
// HLS/DASH manifests). Decoder walks an ordered list of strategies and returns
// the first usable buffer:
//
//   - direct: hands the location to ffmpeg with reconnect and timeout flags
//   - pipe: fetches the bytes itself (or opens the file) and streams them to ffmpeg's stdin
//   - native: decodes local WAV and MP3 in-process when ffmpeg is unavailable
//
// ffmpeg runs through the ProcessRunner capability so tests can substitute a
// fake and so every child gets a hard wall-clock limit that kills its whole
// process group. When every strategy fails the individual errors are joined
// under ErrDecode.
package decoder
