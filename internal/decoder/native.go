package decoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"soundcheck/internal/pcm"
)

// NativeFile decodes local WAV and MP3 files in-process. It covers hosts
// without an ffmpeg binary and never touches the network.
type NativeFile struct{}

func (NativeFile) Name() string { return "native" }

func (NativeFile) Attempt(ctx context.Context, req Request) (pcm.Buffer, error) {
	if req.Source.IsRemote() {
		return pcm.Buffer{}, fmt.Errorf("native: %w: %s", ErrUnsupportedSource, req.Source.Kind)
	}
	if err := ctx.Err(); err != nil {
		return pcm.Buffer{}, err
	}

	file, err := os.Open(req.Source.Location)
	if err != nil {
		return pcm.Buffer{}, fmt.Errorf("open source: %w", err)
	}
	defer file.Close()

	header := make([]byte, 12)
	n, _ := file.Read(header)
	header = header[:n]
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return pcm.Buffer{}, fmt.Errorf("rewind source: %w", err)
	}

	switch sniff(req.Source.Ext(), header) {
	case "wav":
		return pcm.DecodeWAV(file, req.SampleRate, req.Seconds)
	case "mp3":
		return pcm.DecodeMP3(bufio.NewReader(file), req.SampleRate, req.Seconds)
	default:
		return pcm.Buffer{}, fmt.Errorf("native: %w: %s", pcm.ErrUnsupported, req.Source.Location)
	}
}

// sniff picks a native decoder from magic bytes, then the file extension.
func sniff(ext string, header []byte) string {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(header, []byte("ID3")):
		return "mp3"
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return "mp3"
	}
	switch ext {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	}
	return ""
}
