// Package pcm holds decoded audio as mono float samples and the conversions
// that produce it.
//
// Buffer is the hand-off type between the decoder and the fingerprint
// extractor. FromS16LE converts ffmpeg's raw output; DecodeWAV and DecodeMP3
// decode container files in-process for hosts without ffmpeg. Both paths
// downmix to mono, resample to the requested rate, and truncate to a maximum
// duration so every producer yields the same shape.
package pcm
