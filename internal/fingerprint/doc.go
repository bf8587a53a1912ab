// Package fingerprint turns mono PCM into a fixed-length timbre and pitch
// summary.
//
// A Vector holds 13 mean MFCC coefficients followed by 12 mean chroma bins.
// Frames are 1024 samples with a 512-sample hop at 16 kHz; vectors are only
// comparable when both sides were produced with these constants, which is why
// they are exported rather than configurable.
package fingerprint
