// Package faceclient talks to the face service that detects faces and
// computes their 128-d encodings.
package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faceattend/internal/facematch"
)

// ErrUnavailable wraps transport failures and non-2xx answers.
var ErrUnavailable = errors.New("face service unavailable")

// maxErrorBody caps how much of an error response ends up in the error.
const maxErrorBody = 512

// EncodeResult contains the encodings of every face found in an image, in
// the order the face service detected them.
type EncodeResult struct {
	Encodings     []facematch.Encoding
	FacesDetected int
}

// Client calls the face service. With Skip set it never dials out and
// reports one all-zero face per image, for local development.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client; encoding a frame can take seconds on CPU.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type encodeRequest struct {
	Image string `json:"image"`
}

type encodeResponse struct {
	Encodings     [][]float64 `json:"encodings"`
	FacesDetected int         `json:"faces_detected"`
}

// Encode returns one encoding per detected face. Zero faces is not an error.
func (c *Client) Encode(ctx context.Context, image []byte) (*EncodeResult, error) {
	if c.Skip {
		return &EncodeResult{
			Encodings:     []facematch.Encoding{make(facematch.Encoding, facematch.EncodingLen)},
			FacesDetected: 1,
		}, nil
	}
	if len(image) == 0 {
		return nil, errors.New("image required")
	}

	body, err := json.Marshal(encodeRequest{Image: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, err
	}
	var out encodeResponse
	if err := c.do(ctx, http.MethodPost, "/encodings", body, &out); err != nil {
		return nil, err
	}

	res := &EncodeResult{FacesDetected: out.FacesDetected}
	for i, raw := range out.Encodings {
		enc := facematch.Encoding(raw)
		if err := enc.Validate(); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		res.Encodings = append(res.Encodings, enc)
	}
	res.FacesDetected = max(res.FacesDetected, len(res.Encodings))
	return res, nil
}

// Health pings the service's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// do sends body (when non-nil) as JSON and decodes a 2xx answer into out
// (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %s %s: %s", ErrUnavailable, path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
