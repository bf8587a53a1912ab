package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"soundcheck/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test. All
// paths are absolute, history is disabled and ffmpeg points at a binary that
// does not exist, so decodes use the native strategy unless an option says
// otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ProjectRoot = base
	cfgVal.Paths.ReferenceAsset = filepath.Join(base, "fixtures", "reference.wav")
	cfgVal.Paths.ReportsDir = filepath.Join(base, "reports")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "state", "soundcheck.sock")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Decoder.FFmpegBinary = filepath.Join(base, "bin", "ffmpeg-missing")
	cfgVal.Decoder.FFprobeBinary = filepath.Join(base, "bin", "ffprobe-missing")
	cfgVal.Decoder.TimeoutSeconds = 10
	cfgVal.Decoder.ReadTimeoutSeconds = 5
	cfgVal.Results.HistoryEnabled = false
	cfgVal.Results.HistoryPath = filepath.Join(base, "state", "history.db")
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithHistory enables the SQLite run history.
func WithHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Results.HistoryEnabled = true
	}
}

// WithSkipAudio turns on the audio short-circuit.
func WithSkipAudio() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.SkipAudio = true
	}
}

// WithReferenceVersion sets the reference cache tag.
func WithReferenceVersion(version string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fingerprint.ReferenceVersion = version
	}
}

// WithStubbedBinaries writes executables with the given script body for each
// name into the config's bin directory and points the decoder at them. Names
// other than ffmpeg and ffprobe are only written.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		if script == "" {
			script = "#!/bin/sh\nexit 0\n"
		}
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
			switch name {
			case "ffmpeg":
				b.cfg.Decoder.FFmpegBinary = target
			case "ffprobe":
				b.cfg.Decoder.FFprobeBinary = target
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.ProjectRoot
}
