package decoder

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSourceNotFound indicates a local source path does not exist.
	ErrSourceNotFound = errors.New("media source not found")
	// ErrDecode indicates no strategy could open, demux or transcode the source.
	ErrDecode = errors.New("media decode failed")
	// ErrNetwork indicates an HTTP fetch failed or returned an error status.
	ErrNetwork = errors.New("media fetch failed")
	// ErrTimeout indicates a child process exceeded its wall-clock limit.
	ErrTimeout = errors.New("decode timed out")
	// ErrUnsupportedSource indicates a strategy does not handle the source kind.
	ErrUnsupportedSource = errors.New("source not supported by strategy")
	// ErrInvalidSource indicates the raw source string could not be parsed.
	ErrInvalidSource = errors.New("invalid media source")
)

// DecodeError describes a failed ffmpeg run.
type DecodeError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("ffmpeg decode")
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}

// NetworkError describes a failed HTTP fetch in the pipe strategy.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return "fetch " + e.URL
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNetwork}
	}
	return []error{ErrNetwork, e.Err}
}
