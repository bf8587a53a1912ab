package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables consulted after the config file is decoded. The first
// three match the switches the browser suite already exports.
const (
	EnvReferenceVersion = "REF_VERSION"
	EnvStrict           = "FINGERPRINT_STRICT"
	EnvSkipAudio        = "SKIP_AUDIO"
	EnvThreshold        = "FINGERPRINT_THRESHOLD"
	EnvSeconds          = "FINGERPRINT_SECONDS"
	EnvFFmpeg           = "SOUNDCHECK_FFMPEG"
	EnvProjectRoot      = "SOUNDCHECK_PROJECT_ROOT"
	EnvAPIToken         = "SOUNDCHECK_API_TOKEN"
)

func (c *Config) normalize() error {
	if err := c.normalizeProjectRoot(); err != nil {
		return err
	}
	if err := loadDotEnv(c.Paths.ProjectRoot); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFingerprint(); err != nil {
		return err
	}
	c.normalizeDecoder()
	if err := c.normalizeResults(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeProjectRoot() error {
	if value, ok := os.LookupEnv(EnvProjectRoot); ok && strings.TrimSpace(value) != "" {
		c.Paths.ProjectRoot = value
	}
	if strings.TrimSpace(c.Paths.ProjectRoot) == "" {
		c.Paths.ProjectRoot = defaultProjectRoot
	}
	var err error
	if c.Paths.ProjectRoot, err = expandPath(strings.TrimSpace(c.Paths.ProjectRoot)); err != nil {
		return fmt.Errorf("paths.project_root: %w", err)
	}
	return nil
}

// loadDotEnv overlays <root>/.env onto the process environment. Variables
// already present in the environment win.
func loadDotEnv(root string) error {
	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", envPath, err)
	}
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("load %s: %w", envPath, err)
	}
	return nil
}

func (c *Config) normalizePaths() error {
	root := c.Paths.ProjectRoot
	var err error
	if strings.TrimSpace(c.Paths.ReferenceAsset) == "" {
		c.Paths.ReferenceAsset = defaultReferenceAsset
	}
	if c.Paths.ReferenceAsset, err = expandRelative(root, c.Paths.ReferenceAsset); err != nil {
		return fmt.Errorf("paths.reference_asset: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportsDir) == "" {
		c.Paths.ReportsDir = defaultReportsDir
	}
	if c.Paths.ReportsDir, err = expandRelative(root, c.Paths.ReportsDir); err != nil {
		return fmt.Errorf("paths.reports_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.StateDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	switch strings.ToLower(c.Paths.APIBind) {
	case "":
		c.Paths.APIBind = defaultAPIBind
	case "off", "disabled":
		c.Paths.APIBind = ""
	}
	if value, ok := os.LookupEnv(EnvAPIToken); ok {
		c.Paths.APIToken = value
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeFingerprint() error {
	if value, ok := os.LookupEnv(EnvReferenceVersion); ok {
		c.Fingerprint.ReferenceVersion = value
	}
	c.Fingerprint.ReferenceVersion = strings.TrimSpace(c.Fingerprint.ReferenceVersion)

	if value, ok := os.LookupEnv(EnvStrict); ok {
		c.Fingerprint.Strict = envFlag(value)
	}
	if value, ok := os.LookupEnv(EnvSkipAudio); ok {
		c.Fingerprint.SkipAudio = envFlag(value)
	}
	if value, ok := os.LookupEnv(EnvThreshold); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Fingerprint.Threshold = parsed
	}
	if value, ok := os.LookupEnv(EnvSeconds); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSeconds, err)
		}
		c.Fingerprint.DefaultSeconds = parsed
	}
	if c.Fingerprint.DefaultSeconds == 0 {
		c.Fingerprint.DefaultSeconds = defaultFingerprintSeconds
	}
	return nil
}

// envFlag accepts "1" (what the suite exports) and the usual truthy spellings.
func envFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (c *Config) normalizeDecoder() {
	if value, ok := os.LookupEnv(EnvFFmpeg); ok && strings.TrimSpace(value) != "" {
		c.Decoder.FFmpegBinary = value
	}
	c.Decoder.FFmpegBinary = strings.TrimSpace(c.Decoder.FFmpegBinary)
	if c.Decoder.FFmpegBinary == "" {
		c.Decoder.FFmpegBinary = defaultFFmpegBinary
	}
	c.Decoder.FFprobeBinary = strings.TrimSpace(c.Decoder.FFprobeBinary)
	if c.Decoder.FFprobeBinary == "" {
		c.Decoder.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Decoder.TimeoutSeconds <= 0 {
		c.Decoder.TimeoutSeconds = defaultDecodeTimeout
	}
	if c.Decoder.ReadTimeoutSeconds <= 0 {
		c.Decoder.ReadTimeoutSeconds = defaultReadTimeout
	}
	if c.Decoder.ReconnectDelayMax < 0 {
		c.Decoder.ReconnectDelayMax = 0
	}
	c.Decoder.UserAgent = strings.TrimSpace(c.Decoder.UserAgent)
	if c.Decoder.UserAgent == "" {
		c.Decoder.UserAgent = defaultUserAgent
	}
	c.Decoder.Accept = strings.TrimSpace(c.Decoder.Accept)
	if c.Decoder.Accept == "" {
		c.Decoder.Accept = defaultAccept
	}
}

func (c *Config) normalizeResults() error {
	if strings.TrimSpace(c.Results.HistoryPath) == "" {
		c.Results.HistoryPath = filepath.Join(c.Paths.StateDir, defaultHistoryName)
	}
	var err error
	if c.Results.HistoryPath, err = expandPath(strings.TrimSpace(c.Results.HistoryPath)); err != nil {
		return fmt.Errorf("results.history_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
