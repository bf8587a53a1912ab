package ipc

import (
	"encoding/json"

	"soundcheck/internal/daemon"
	"soundcheck/internal/fingerprint"
	"soundcheck/internal/gateway"
	"soundcheck/internal/similarity"
)

// ServiceName is the JSON-RPC service the server registers.
const ServiceName = "Tasks"

// Empty is the request for operations without inputs.
type Empty struct{}

// VectorResponse carries a fingerprint; Vector is null when the task fell back.
type VectorResponse struct {
	Vector fingerprint.Vector `json:"vector"`
}

// URLRequest names a media source.
type URLRequest struct {
	URL string `json:"url"`
}

// MediaRequest names a media source and decode budget.
type MediaRequest = gateway.MediaRequest

// CompareRequest carries two vectors and an optional threshold.
type CompareRequest = gateway.CompareRequest

// CompareResponse is the similarity verdict.
type CompareResponse = similarity.Result

// StatResponse describes the reference asset.
type StatResponse = gateway.StatResult

// ProbeResponse reports a decode probe.
type ProbeResponse = gateway.ProbeResult

// RecordRequest carries one result record as raw JSON.
type RecordRequest struct {
	Record json.RawMessage `json:"record"`
}

// FlushResponse carries the written report path; Path is empty on failure.
type FlushResponse struct {
	Path string `json:"path"`
}

// InvokeRequest runs a task by name.
type InvokeRequest struct {
	Task    string          `json:"task"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// InvokeResponse carries the task result encoded as JSON.
type InvokeResponse struct {
	Result json.RawMessage `json:"result"`
}

// StatusResponse mirrors the daemon status.
type StatusResponse = daemon.Status
