package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"soundcheck/internal/ipc"
	"soundcheck/internal/testsupport"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "soundcheck-1.log")
	second := filepath.Join(dir, "soundcheck-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "soundcheck.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "soundcheck-2.log" {
		t.Fatalf("expected pointer to latest log, got %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soundcheck.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}

func TestRunServesUntilCanceled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSkipAudio())
	cfg.Paths.APIBind = ""

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	var client *ipc.Client
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		c, err := ipc.Dial(cfg.Paths.SocketPath)
		if err == nil {
			client = c
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if client == nil {
		cancel()
		t.Fatalf("daemon socket never came up: %v", <-done)
	}
	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	_ = client.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StateDir, "soundcheck.pid")); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}
