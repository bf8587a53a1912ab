package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"soundcheck/internal/config"
)

// isolateEnv clears every variable Load consults so the host environment
// cannot leak into assertions.
func isolateEnv(t *testing.T) string {
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
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, cfg config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	home := isolateEnv(t)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(home, ".local", "share", "soundcheck")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.SocketPath != filepath.Join(wantState, "soundcheck.sock") {
		t.Fatalf("unexpected socket path: %q", cfg.Paths.SocketPath)
	}
	if cfg.Results.HistoryPath != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.Results.HistoryPath)
	}
	if !filepath.IsAbs(cfg.Paths.ReferenceAsset) {
		t.Fatalf("expected absolute reference asset, got %q", cfg.Paths.ReferenceAsset)
	}
	if !strings.HasSuffix(cfg.Paths.ReferenceAsset, filepath.Join("cypress", "fixtures", "reference.mp3")) {
		t.Fatalf("unexpected reference asset: %q", cfg.Paths.ReferenceAsset)
	}
	if cfg.Fingerprint.DefaultSeconds != 5 {
		t.Fatalf("unexpected default seconds: %v", cfg.Fingerprint.DefaultSeconds)
	}
	if cfg.Fingerprint.Threshold != 0.90 {
		t.Fatalf("unexpected threshold: %v", cfg.Fingerprint.Threshold)
	}
	if cfg.Fingerprint.SkipAudio || cfg.Fingerprint.Strict {
		t.Fatal("expected skip_audio and strict disabled by default")
	}
	if cfg.Decoder.FFmpegBinary != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.Decoder.FFmpegBinary)
	}
	if cfg.DecodeTimeout().Seconds() != 120 {
		t.Fatalf("unexpected decode timeout: %v", cfg.DecodeTimeout())
	}
	if !cfg.Decoder.NativeFallback {
		t.Fatal("expected native fallback enabled by default")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging format: %q", cfg.Logging.Format)
	}
}

func TestLoadResolvesRelativePathsAgainstProjectRoot(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	base := config.Default()
	base.Paths.ProjectRoot = root
	base.Paths.ReferenceAsset = "fixtures/ref.wav"
	base.Paths.ReportsDir = "out/reports"
	path := writeConfig(t, base)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.ReferenceAsset != filepath.Join(root, "fixtures", "ref.wav") {
		t.Fatalf("unexpected reference asset: %q", cfg.Paths.ReferenceAsset)
	}
	if cfg.Paths.ReportsDir != filepath.Join(root, "out", "reports") {
		t.Fatalf("unexpected reports dir: %q", cfg.Paths.ReportsDir)
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv(config.EnvReferenceVersion, "v7")
	t.Setenv(config.EnvStrict, "1")
	t.Setenv(config.EnvSkipAudio, "1")
	t.Setenv(config.EnvThreshold, "0.75")
	t.Setenv(config.EnvSeconds, "8")
	t.Setenv(config.EnvFFmpeg, "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv(config.EnvAPIToken, " secret ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Fingerprint.ReferenceVersion != "v7" {
		t.Fatalf("unexpected reference version: %q", cfg.Fingerprint.ReferenceVersion)
	}
	if !cfg.Fingerprint.Strict || !cfg.Fingerprint.SkipAudio {
		t.Fatalf("expected strict and skip_audio from env, got %+v", cfg.Fingerprint)
	}
	if cfg.Fingerprint.Threshold != 0.75 {
		t.Fatalf("unexpected threshold: %v", cfg.Fingerprint.Threshold)
	}
	if cfg.Fingerprint.DefaultSeconds != 8 {
		t.Fatalf("unexpected seconds: %v", cfg.Fingerprint.DefaultSeconds)
	}
	if cfg.Decoder.FFmpegBinary != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("unexpected ffmpeg binary: %q", cfg.Decoder.FFmpegBinary)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("unexpected api token: %q", cfg.Paths.APIToken)
	}
}

func TestLoadReadsDotEnvFromProjectRoot(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("REF_VERSION=from-dotenv\nSKIP_AUDIO=1\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(config.EnvProjectRoot, root)

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.ProjectRoot != root {
		t.Fatalf("unexpected project root: %q", cfg.Paths.ProjectRoot)
	}
	if cfg.Fingerprint.ReferenceVersion != "from-dotenv" {
		t.Fatalf("expected reference version from .env, got %q", cfg.Fingerprint.ReferenceVersion)
	}
	if !cfg.Fingerprint.SkipAudio {
		t.Fatal("expected skip_audio from .env")
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("REF_VERSION=from-dotenv\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv(config.EnvProjectRoot, root)
	t.Setenv(config.EnvReferenceVersion, "from-shell")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Fingerprint.ReferenceVersion != "from-shell" {
		t.Fatalf("expected shell value to win, got %q", cfg.Fingerprint.ReferenceVersion)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "threshold above one",
			mutate: func(c *config.Config) { c.Fingerprint.Threshold = 1.5 },
			want:   "fingerprint.threshold",
		},
		{
			name:   "negative seconds",
			mutate: func(c *config.Config) { c.Fingerprint.DefaultSeconds = -2 },
			want:   "fingerprint.default_seconds",
		},
		{
			name:   "bad api bind",
			mutate: func(c *config.Config) { c.Paths.APIBind = "no-port" },
			want:   "paths.api_bind",
		},
		{
			name:   "unknown level",
			mutate: func(c *config.Config) { c.Logging.Level = "chatty" },
			want:   "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			cfg := config.Default()
			tt.mutate(&cfg)
			path := writeConfig(t, cfg)
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Fingerprint.Threshold != 0.90 {
		t.Fatalf("unexpected sample threshold: %v", cfg.Fingerprint.Threshold)
	}
}

func TestEnsureDirectoriesCreatesStateAndReports(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.Paths.ReportsDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestAPIBindOffDisablesListener(t *testing.T) {
	isolateEnv(t)
	cfg := config.Default()
	cfg.Paths.APIBind = "off"
	loaded, _, _, err := config.Load(writeConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Paths.APIBind != "" {
		t.Fatalf("expected empty api_bind, got %q", loaded.Paths.APIBind)
	}
}
