package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFingerprint(); err != nil {
		return err
	}
	if err := c.validateDecoder(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ReferenceAsset == "" {
		return errors.New("paths.reference_asset must be set")
	}
	if c.Paths.ReportsDir == "" {
		return errors.New("paths.reports_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
		return fmt.Errorf("paths.api_bind %q: %w", c.Paths.APIBind, err)
	}
	return nil
}

func (c *Config) validateFingerprint() error {
	threshold := c.Fingerprint.Threshold
	if math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return errors.New("fingerprint.threshold must be between -1 and 1")
	}
	seconds := c.Fingerprint.DefaultSeconds
	if math.IsNaN(seconds) || seconds <= 0 {
		return errors.New("fingerprint.default_seconds must be positive")
	}
	if seconds > maxFingerprintSeconds {
		return fmt.Errorf("fingerprint.default_seconds must not exceed %d", maxFingerprintSeconds)
	}
	return nil
}

func (c *Config) validateDecoder() error {
	if strings.ContainsAny(c.Decoder.UserAgent, "\r\n") {
		return errors.New("decoder.user_agent must be a single line")
	}
	if strings.ContainsAny(c.Decoder.Accept, "\r\n") {
		return errors.New("decoder.accept must be a single line")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
