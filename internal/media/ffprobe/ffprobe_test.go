package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "mp3", "codec_type": "audio", "sample_rate": "44100", "channels": 2, "channel_layout": "stereo", "duration": "12.500000"}
  ],
  "format": {"filename": "reference.mp3", "format_name": "mp3", "duration": "12.512000", "size": "200000", "bit_rate": "128000"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	stream, ok := result.AudioStream()
	if !ok {
		t.Fatal("expected audio stream")
	}
	if stream.SampleRateHz() != 44100 || stream.Channels != 2 {
		t.Fatalf("unexpected stream: %+v", stream)
	}
	if result.DurationSeconds() != 12.512 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "3.25"}},
		Format:  Format{Duration: "N/A"},
	}
	if result.DurationSeconds() != 3.25 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if (Result{}).DurationSeconds() != 0 {
		t.Fatal("expected zero duration for empty result")
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(jsonPath, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("write json: %v", err)
	}
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat " + jsonPath + "\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, "/tmp/reference.mp3")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if result.Format.FormatName != "mp3" {
		t.Fatalf("unexpected format: %+v", result.Format)
	}
}

func TestInspectReportsFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'no such file' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := Inspect(context.Background(), stub, "/missing.mp3"); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if _, err := Inspect(context.Background(), stub, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
