// Copyright (c) 2026 Mosava. All rights reserved.
// Author: vann.pham.vn@gmail.com

/*
Package nsfw screens uploaded portraits against a remote content classifier.

The classifier runs as a sidecar service exposing a single scoring endpoint:
POST the raw image bytes, receive a JSON body with an explicitness score in
[0, 1]. Uploads scoring at or above the configured threshold are rejected
before they ever reach a mosaic.

When the filter is disabled by configuration, the [Disabled] detector accepts
everything without a network round-trip.
*/
package nsfw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Detector decides whether an uploaded image violates the content policy.
type Detector interface {
	// IsExplicit reports whether the image bytes should be rejected.
	IsExplicit(ctx context.Context, payload []byte) (bool, error)
}

// # Remote Classifier

// Client calls the remote classifier sidecar.
type Client struct {
	baseURL   string
	threshold float64
	http      *http.Client
}

// NewClient creates a detector backed by the classifier at baseURL.
// Images scoring >= threshold are treated as explicit.
func NewClient(baseURL string, threshold float64) *Client {
	return &Client{
		baseURL:   baseURL,
		threshold: threshold,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// scoreResponse is the classifier's JSON reply.
type scoreResponse struct {
	Score float64 `json:"score"`
}

// IsExplicit posts the image to the classifier and applies the threshold.
//
// Classifier failures surface as errors rather than silently passing the
// image through: the caller decides whether to fail open or closed.
func (c *Client) IsExplicit(ctx context.Context, payload []byte) (bool, error) {

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/score", bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("nsfw: failed to build classifier request: %w", err)
	}
	request.Header.Set("Content-Type", "application/octet-stream")

	response, err := c.http.Do(request)
	if err != nil {
		return false, fmt.Errorf("nsfw: classifier request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return false, fmt.Errorf("nsfw: classifier returned status %d", response.StatusCode)
	}

	var result scoreResponse
	if err := json.NewDecoder(response.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("nsfw: failed to decode classifier response: %w", err)
	}

	return result.Score >= c.threshold, nil
}

// # Disabled Detector

// Disabled is a no-op detector that accepts every image.
type Disabled struct{}

// IsExplicit always reports false.
func (Disabled) IsExplicit(context.Context, []byte) (bool, error) {
	return false, nil
}
