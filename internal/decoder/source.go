package decoder

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// SourceKind discriminates local files from remote URLs.
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceHTTP
)

func (k SourceKind) String() string {
	if k == SourceHTTP {
		return "http"
	}
	return "file"
}

// Source is a media location understood by the decoder.
type Source struct {
	Kind     SourceKind
	Location string
}

// FileSource returns a Source for an absolute form of path.
func FileSource(path string) Source {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return Source{Kind: SourceFile, Location: path}
}

// ParseSource classifies raw as an HTTP(S) URL, a file:// URL or a plain path.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, fmt.Errorf("%w: empty", ErrInvalidSource)
	}
	if !strings.Contains(raw, "://") {
		return FileSource(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return Source{}, fmt.Errorf("%w: missing host in %q", ErrInvalidSource, raw)
		}
		return Source{Kind: SourceHTTP, Location: u.String()}, nil
	case "file":
		if u.Path == "" {
			return Source{}, fmt.Errorf("%w: empty file url", ErrInvalidSource)
		}
		return FileSource(u.Path), nil
	default:
		return Source{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSource, u.Scheme)
	}
}

// IsRemote reports whether the source is fetched over HTTP.
func (s Source) IsRemote() bool { return s.Kind == SourceHTTP }

// String returns the location.
func (s Source) String() string { return s.Location }

// Ext returns the lower-case extension of the path component, including the dot.
func (s Source) Ext() string {
	p := s.Location
	if s.IsRemote() {
		if u, err := url.Parse(p); err == nil {
			p = u.Path
		}
	}
	return strings.ToLower(filepath.Ext(p))
}

// IsManifest reports whether the source looks like an HLS or DASH playlist.
func (s Source) IsManifest() bool {
	switch s.Ext() {
	case ".m3u8", ".m3u", ".mpd":
		return true
	default:
		return false
	}
}

// MaybeManifest reports whether a remote source has no extension to judge
// it by, as with signed or tokenised playlist URLs.
func (s Source) MaybeManifest() bool {
	return s.IsRemote() && s.Ext() == ""
}

// Check verifies a local source exists and is a regular file. Remote
// sources are not probed.
func (s Source) Check() error {
	if s.IsRemote() {
		return nil
	}
	info, err := os.Stat(s.Location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, s.Location)
		}
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, s.Location)
	}
	return nil
}
