package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory, asset, and listener configuration.
type Paths struct {
	ProjectRoot    string `toml:"project_root"`
	ReferenceAsset string `toml:"reference_asset"`
	ReportsDir     string `toml:"reports_dir"`
	StateDir       string `toml:"state_dir"`
	LogDir         string `toml:"log_dir"`
	SocketPath     string `toml:"socket_path"`
	APIBind        string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on the HTTP API.
	APIToken string `toml:"api_token"`
}

// Fingerprint contains defaults for fingerprint extraction and scoring.
type Fingerprint struct {
	// DefaultSeconds bounds how much audio is decoded when a caller does not
	// pass an explicit duration.
	DefaultSeconds float64 `toml:"default_seconds"`
	// Threshold is the cosine similarity at or above which a comparison passes.
	Threshold float64 `toml:"threshold"`
	// ReferenceVersion is an opaque cache-busting tag mixed into the reference
	// cache key. Bump it (or REF_VERSION) to force recomputation.
	ReferenceVersion string `toml:"reference_version"`
	// Strict asks the browser suite to fail (rather than warn) on mismatches.
	Strict bool `toml:"strict"`
	// SkipAudio short-circuits every audio task to its sentinel result.
	SkipAudio bool `toml:"skip_audio"`
}

// Decoder contains ffmpeg invocation settings.
type Decoder struct {
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	ReadTimeoutSeconds int    `toml:"read_timeout_seconds"`
	ReconnectDelayMax  int    `toml:"reconnect_delay_max"`
	UserAgent          string `toml:"user_agent"`
	Accept             string `toml:"accept"`
	NativeFallback     bool   `toml:"native_fallback"`
}

// Results contains configuration for the run results sink.
type Results struct {
	HistoryEnabled bool   `toml:"history_enabled"`
	HistoryPath    string `toml:"history_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for soundcheck.
//
// Configuration sections by subsystem:
//   - Paths: project root, reference asset, report/state/log directories, listeners
//   - Fingerprint: default duration, similarity threshold, reference version tag
//   - Decoder: ffmpeg/ffprobe binaries, timeouts, HTTP client identity
//   - Results: run history persistence
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Fingerprint Fingerprint `toml:"fingerprint"`
	Decoder     Decoder     `toml:"decoder"`
	Results     Results     `toml:"results"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/soundcheck/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("soundcheck.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon and results sink write to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.Paths.ReportsDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DecodeTimeout returns the hard wall-clock limit for a single decode attempt.
func (c *Config) DecodeTimeout() time.Duration {
	return time.Duration(c.Decoder.TimeoutSeconds) * time.Second
}

// ReadTimeout returns the network read timeout passed to ffmpeg and used for
// the HTTP fallback client.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Decoder.ReadTimeoutSeconds) * time.Second
}

// LockPath returns the advisory lock file guarding a single daemon instance.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "soundcheck.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// expandRelative resolves pathValue against base unless it is already
// absolute or home-relative.
func expandRelative(base, pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" || strings.HasPrefix(trimmed, "~") || filepath.IsAbs(trimmed) {
		return expandPath(trimmed)
	}
	return expandPath(filepath.Join(base, trimmed))
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
