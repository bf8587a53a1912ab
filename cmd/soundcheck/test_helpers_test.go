package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"soundcheck/internal/config"
	"soundcheck/internal/daemon"
	"soundcheck/internal/gateway"
	"soundcheck/internal/ipc"
	"soundcheck/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	socketPath string
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvReferenceVersion,
		config.EnvStrict,
		config.EnvSkipAudio,
		config.EnvThreshold,
		config.EnvSeconds,
		config.EnvFFmpeg,
		config.EnvProjectRoot,
		config.EnvAPIToken,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("HOME", t.TempDir())
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	isolateEnv(t)
	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, socketPath: cfg.Paths.SocketPath}
}

// startDaemon serves env's config over its socket for the duration of the test.
func (env *cliTestEnv) startDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	gw, closeFn, err := gateway.FromConfig(ctx, env.cfg, nil)
	if err != nil {
		cancel()
		t.Fatalf("gateway.FromConfig: %v", err)
	}
	d, err := daemon.New(env.cfg, gw, nil)
	if err != nil {
		cancel()
		t.Fatalf("daemon.New: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, nil)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
		_ = closeFn()
	})
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{"--socket", env.socketPath, "--config", env.configPath}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
