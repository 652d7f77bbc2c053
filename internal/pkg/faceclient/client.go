// Package faceclient calls the face-recognition microservice that turns a
// captured image into a fixed-length descriptor. Descriptor comparison itself
// happens in-process (internal/pkg/facever); this client only does extraction
// and the advisory liveness probe.
package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExtractResult contains the descriptor and how many faces were found.
type ExtractResult struct {
	Descriptor    []float64 `json:"descriptor"`
	FacesDetected int       `json:"faces_detected"`
}

// LivenessResult contains the blink / eye-aspect-ratio heuristic outcome.
type LivenessResult struct {
	IsLive         bool    `json:"is_live"`
	EyeAspectRatio float64 `json:"eye_aspect_ratio"`
	Confidence     float64 `json:"confidence"`
}

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. Extraction is model-bound and can be slow.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Extract requests a descriptor for a base64-encoded image. A response with
// zero or multiple faces is returned as-is; classifying it is the engine's job.
func (c *Client) Extract(ctx context.Context, imageBase64 string) (*ExtractResult, error) {
	if imageBase64 == "" {
		return nil, fmt.Errorf("faceclient: image required")
	}

	var out ExtractResult
	if err := c.post(ctx, "/extract", map[string]string{"image": imageBase64}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Liveness runs the anti-spoofing heuristic on a base64-encoded image.
func (c *Client) Liveness(ctx context.Context, imageBase64 string) (*LivenessResult, error) {
	var out LivenessResult
	if err := c.post(ctx, "/liveness", map[string]string{"image": imageBase64}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("faceclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
