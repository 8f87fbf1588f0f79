// Package generation calls the external composite-rendering endpoint: kitchen
// photo plus slab swatch in, rendered countertop preview out.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slabworks/visualizer/internal/wizard"
)

type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		// rendering regularly takes tens of seconds
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type generateResp struct {
	ImageData string `json:"imageData"`
	Error     string `json:"error"`
}

func (c *Client) Generate(ctx context.Context, r wizard.GenerationRequest) (string, error) {
	if c.endpoint == "" {
		return "", errors.New("generation endpoint missing (GENERATION_API_URL)")
	}
	buf, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("generation status %d: %s", res.StatusCode, string(body))
	}
	var out generateResp
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	if out.ImageData == "" {
		return "", errors.New("generation returned no image")
	}
	return out.ImageData, nil
}
