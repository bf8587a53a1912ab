package gateway

import (
	"encoding/json"
	"strings"
	"time"
)

// StatResult describes the reference asset on disk.
type StatResult struct {
	Exists          bool       `json:"exists"`
	Path            string     `json:"path"`
	Size            *int64     `json:"size,omitempty"`
	MTime           *time.Time `json:"mtime,omitempty"`
	DurationSeconds *float64   `json:"durationSeconds,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// ProbeResult reports whether a full decode succeeded.
type ProbeResult struct {
	OK      bool   `json:"ok"`
	Samples int    `json:"samples,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MediaRequest selects a source and how much of it to decode. Seconds <= 0
// uses the configured default.
type MediaRequest struct {
	URL     string  `json:"url"`
	Seconds float64 `json:"seconds"`
}

// CompareRequest carries two vectors and an optional threshold.
type CompareRequest struct {
	A         []float64 `json:"a"`
	B         []float64 `json:"b"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// decodeURLPayload accepts either a bare JSON string or {"url": "..."}.
func decodeURLPayload(payload json.RawMessage) (string, bool) {
	var url string
	if err := json.Unmarshal(payload, &url); err == nil {
		url = strings.TrimSpace(url)
		return url, url != ""
	}
	var req MediaRequest
	if err := json.Unmarshal(payload, &req); err == nil && strings.TrimSpace(req.URL) != "" {
		return strings.TrimSpace(req.URL), true
	}
	return "", false
}

func decodeMediaPayload(payload json.RawMessage) (MediaRequest, bool) {
	var req MediaRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		if url, ok := decodeURLPayload(payload); ok {
			return MediaRequest{URL: url}, true
		}
		return MediaRequest{}, false
	}
	req.URL = strings.TrimSpace(req.URL)
	return req, req.URL != ""
}
