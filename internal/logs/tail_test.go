package logs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"soundcheck/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soundcheck.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}
}

func TestLastSpansChunks(t *testing.T) {
	var b strings.Builder
	for i := range 5000 {
		fmt.Fprintf(&b, "line %04d %s\n", i, strings.Repeat("x", 20))
	}
	path := writeLog(t, b.String())

	lines, _, err := logs.Last(path, 3)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "line 4997") || !strings.HasPrefix(lines[2], "line 4999") {
		t.Fatalf("unexpected lines: %#v", lines)
	}

	all, _, err := logs.Last(path, 10000)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(all) != 5000 || !strings.HasPrefix(all[0], "line 0000") {
		t.Fatalf("expected every line, got %d starting %q", len(all), all[0])
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %v %d %v", lines, offset, err)
	}
}

func TestReadFromKeepsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntwo\npart")

	lines, offset, err := logs.ReadFrom(path, 0)
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if len(lines) != 2 || lines[1] != "two" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 8 {
		t.Fatalf("expected offset before partial line, got %d", offset)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("ial\r\n")
	_ = f.Close()

	lines, _, err = logs.ReadFrom(path, offset)
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "partial" {
		t.Fatalf("unexpected lines after append: %#v", lines)
	}
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "fresh\n")
	lines, _, err := logs.ReadFrom(path, 4096)
	if err != nil {
		t.Fatalf("ReadFrom returned error: %v", err)
	}
	if len(lines) != 1 || lines[0] != "fresh" {
		t.Fatalf("expected restart from top, got %#v", lines)
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	time.Sleep(30 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("later\n")
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected followed lines: %#v", got)
	}
}
