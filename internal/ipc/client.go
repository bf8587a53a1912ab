package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"soundcheck/internal/fingerprint"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return c.client.Call(ServiceName+"."+method, req, resp)
}

// ReferenceFingerprint returns the cached reference vector, or nil.
func (c *Client) ReferenceFingerprint() (fingerprint.Vector, error) {
	var resp VectorResponse
	if err := c.call("ReferenceFingerprint", Empty{}, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// StatReference describes the reference asset.
func (c *Client) StatReference() (*StatResponse, error) {
	var resp StatResponse
	if err := c.call("StatReference", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProbeReferenceDecode decodes a short window of the reference asset.
func (c *Client) ProbeReferenceDecode() (*ProbeResponse, error) {
	var resp ProbeResponse
	if err := c.call("ProbeReferenceDecode", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ProbeLiveDecode decodes a window of a live source.
func (c *Client) ProbeLiveDecode(req MediaRequest) (*ProbeResponse, error) {
	var resp ProbeResponse
	if err := c.call("ProbeLiveDecode", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FingerprintAudioFromURL fingerprints a source with the default budget.
func (c *Client) FingerprintAudioFromURL(url string) (fingerprint.Vector, error) {
	var resp VectorResponse
	if err := c.call("FingerprintAudioFromURL", URLRequest{URL: url}, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// FingerprintMedia fingerprints a source with an explicit budget.
func (c *Client) FingerprintMedia(req MediaRequest) (fingerprint.Vector, error) {
	var resp VectorResponse
	if err := c.call("FingerprintMedia", req, &resp); err != nil {
		return nil, err
	}
	return resp.Vector, nil
}

// CompareFingerprints scores two vectors.
func (c *Client) CompareFingerprints(req CompareRequest) (*CompareResponse, error) {
	var resp CompareResponse
	if err := c.call("CompareFingerprints", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordStep appends a step record.
func (c *Client) RecordStep(record json.RawMessage) error {
	return c.call("RecordStep", RecordRequest{Record: record}, &Empty{})
}

// RecordAction appends an action record.
func (c *Client) RecordAction(record json.RawMessage) error {
	return c.call("RecordAction", RecordRequest{Record: record}, &Empty{})
}

// RecordNavTiming appends a navigation timing record.
func (c *Client) RecordNavTiming(record json.RawMessage) error {
	return c.call("RecordNavTiming", RecordRequest{Record: record}, &Empty{})
}

// RecordRequest appends a network request record.
func (c *Client) RecordRequest(record json.RawMessage) error {
	return c.call("RecordRequest", RecordRequest{Record: record}, &Empty{})
}

// RecordRequestsBatch appends every element of a JSON array of requests.
func (c *Client) RecordRequestsBatch(batch json.RawMessage) error {
	return c.call("RecordRequestsBatch", RecordRequest{Record: batch}, &Empty{})
}

// FlushResults writes the report and returns its path, or "" on failure.
func (c *Client) FlushResults() (string, error) {
	var resp FlushResponse
	if err := c.call("FlushResults", Empty{}, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// Invoke runs a task by name and returns its JSON-encoded result.
func (c *Client) Invoke(task string, payload json.RawMessage) (json.RawMessage, error) {
	var resp InvokeResponse
	if err := c.call("Invoke", InvokeRequest{Task: task, Payload: payload}, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", Empty{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
