package decoder

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"soundcheck/internal/pcm"
)

// PipeFallback fetches the source itself and streams the bytes into ffmpeg's
// stdin. Remote fetches send an explicit User-Agent and Accept header, which
// gets past CDNs that reject ffmpeg's own client.
type PipeFallback struct {
	ffmpegSettings
	client *http.Client
}

func (PipeFallback) Name() string { return "pipe" }

func (p PipeFallback) Attempt(ctx context.Context, req Request) (pcm.Buffer, error) {
	body, err := p.open(ctx, req.Source)
	if err != nil {
		return pcm.Buffer{}, err
	}
	defer body.Close()
	return p.run(ctx, req, ffmpegArgs(p.spec(req, "pipe:0", true)), body)
}

func (p PipeFallback) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if !src.IsRemote() {
		file, err := os.Open(src.Location)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, &NetworkError{URL: src.Location, Err: err}
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	if p.accept != "" {
		req.Header.Set("Accept", p.accept)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: src.Location, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &NetworkError{URL: src.Location, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}
