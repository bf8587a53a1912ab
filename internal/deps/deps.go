// Package deps reports on the external binaries soundcheck shells out to.
package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"soundcheck/internal/config"
)

// ErrBinaryNotFound indicates a configured command could not be resolved.
var ErrBinaryNotFound = errors.New("binary not found")

// Requirement defines an external dependency soundcheck relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DecoderRequirements lists the binaries used by the decoder and reference
// diagnostics. ffmpeg is optional only when the in-process fallback is enabled.
func DecoderRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Decoder.FFmpegBinary,
			Description: "Decodes local files, HTTP media and HLS/DASH manifests to PCM",
			Optional:    cfg.Decoder.NativeFallback,
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Decoder.FFprobeBinary,
			Description: "Reports reference asset duration",
			Optional:    true,
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		path, err := ResolveBinary(cmd)
		if err != nil {
			status.Detail = err.Error()
			results = append(results, status)
			continue
		}
		status.Path = path
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the required dependencies that are unavailable.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}

// ResolveBinary returns the absolute path of command, searching PATH for bare names.
func ResolveBinary(command string) (string, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", fmt.Errorf("command not configured: %w", ErrBinaryNotFound)
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("binary %q: %w", command, ErrBinaryNotFound)
	}
	info, err := os.Stat(path)
	if err != nil || !isExecutable(info) {
		return "", fmt.Errorf("binary %q is not executable: %w", command, ErrBinaryNotFound)
	}
	return path, nil
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
