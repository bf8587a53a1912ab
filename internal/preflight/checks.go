package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"soundcheck/internal/config"
	"soundcheck/internal/decoder"
	"soundcheck/internal/deps"
	"soundcheck/internal/results"
)

const sourceCheckTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckReadableFile verifies that path is a non-empty regular file the
// process can read.
func CheckReadableFile(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if info.Size() == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d bytes)", path, info.Size())}
}

// CheckDecoderBinaries reports ffmpeg and ffprobe availability.
func CheckDecoderBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(deps.DecoderRequirements(cfg))
	out := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			r.Detail = status.Path
		} else {
			r.Detail = status.Detail
		}
		out = append(out, r)
	}
	return out
}

// CheckHistory opens the run history database, applying migrations, and
// counts recent runs.
func CheckHistory(ctx context.Context, path string) Result {
	const name = "Run history"
	history, err := results.OpenHistory(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer history.Close()
	runs, err := history.ListRuns(ctx, 1)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := "no runs recorded"
	if len(runs) > 0 {
		detail = "last run " + runs[0].FlushedAt.Format(time.RFC3339)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, detail)}
}

// CheckSource verifies that a live source can be opened. Local paths are
// checked on disk; HTTP sources get a ranged GET with the decoder's headers.
func CheckSource(ctx context.Context, cfg *config.Config, raw string) Result {
	const name = "Live source"
	src, err := decoder.ParseSource(raw)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !src.IsRemote() {
		return CheckReadableFile(name, src.Location)
	}

	checkCtx, cancel := context.WithTimeout(ctx, sourceCheckTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, src.Location, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", src.Location, err)}
	}
	req.Header.Set("User-Agent", cfg.Decoder.UserAgent)
	req.Header.Set("Accept", cfg.Decoder.Accept)
	req.Header.Set("Range", "bytes=0-1023")

	client := &http.Client{Timeout: sourceCheckTimeout}
	resp, err := client.Do(req)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "timed out"
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", src.Location, detail)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		kind := "media"
		if src.IsManifest() {
			kind = "manifest"
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s reachable, %s)", src.Location, kind, resp.Header.Get("Content-Type"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Result{Name: name, Detail: fmt.Sprintf("%s (access denied: %d)", src.Location, resp.StatusCode)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("%s (unexpected status %d)", src.Location, resp.StatusCode)}
	}
}
