package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	chunkSize     = 16 * 1024
	maxLineLength = 1024 * 1024
	defaultPoll   = 250 * time.Millisecond
)

// Last returns up to n trailing lines of path and the offset of end of file.
// A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	size := info.Size()
	if n <= 0 || size == 0 {
		return nil, size, nil
	}

	// Walk backwards one chunk at a time until n+1 newlines are buffered.
	var tail []byte
	pos := size
	for pos > 0 && bytes.Count(tail, []byte{'\n'}) <= n {
		step := min(int64(chunkSize), pos)
		pos -= step
		chunk := make([]byte, step)
		if _, err := file.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		tail = append(chunk, tail...)
	}

	lines := splitLines(tail)
	if pos > 0 && len(lines) > 0 {
		// The first line may be cut mid-way by the chunk boundary.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, size, nil
}

// ReadFrom returns the complete lines written at or after offset and the
// offset just past the last one. An offset beyond end of file, which happens
// after truncation, restarts from the beginning.
func ReadFrom(path string, offset int64) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, chunkSize)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// Leave a partial trailing line for the next read.
			return lines, offset, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		if len(line) > maxLineLength {
			line = line[:maxLineLength]
		}
		lines = append(lines, trimNewline(line))
	}
}

// Follow calls emit for every line appended to path after offset until ctx
// is done. poll <= 0 uses a 250ms interval. It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		lines, next, err := ReadFrom(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			emit(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err == nil && info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

func splitLines(data []byte) []string {
	data = bytes.TrimSuffix(data, []byte{'\n'})
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(data, []byte{'\n'})
	lines := make([]string, len(parts))
	for i, part := range parts {
		lines[i] = trimNewline(string(part))
	}
	return lines
}

func trimNewline(line string) string {
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}
