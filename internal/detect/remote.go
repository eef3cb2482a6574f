package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync/atomic"
	"time"
)

const (
	classifyTimeout = 30 * time.Second
	statusTimeout   = 5 * time.Second

	// availabilityTTL bounds how often the status probe hits the wire.
	availabilityTTL = 30 * time.Second
)

// RemoteClassifier talks to an inference HTTP endpoint. Availability is
// probed lazily and cached so the steady-state "no model" condition does not
// cost a round trip per frame.
type RemoteClassifier struct {
	endpoint   string
	httpClient *http.Client

	// cached availability: unix nanos of last probe and its verdict.
	probedAt atomic.Int64
	healthy  atomic.Bool
}

// NewRemoteClassifier creates a classifier client for the given endpoint.
func NewRemoteClassifier(endpoint string) *RemoteClassifier {
	return &RemoteClassifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: classifyTimeout},
	}
}

type classifyResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Available probes GET /status on the inference endpoint, caching the result
// for a short window.
func (c *RemoteClassifier) Available(ctx context.Context) bool {
	if c.endpoint == "" {
		return false
	}

	last := c.probedAt.Load()
	if last != 0 && time.Since(time.Unix(0, last)) < availabilityTTL {
		return c.healthy.Load()
	}

	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	ok := false
	if u, err := c.buildURL("status"); err == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err == nil {
			resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config, not user input
			if err == nil {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
				_ = resp.Body.Close()
				ok = resp.StatusCode == http.StatusOK
			}
		}
	}

	c.healthy.Store(ok)
	c.probedAt.Store(time.Now().UnixNano())
	return ok
}

// Classify uploads the image to POST /classify and returns the candidate
// predictions.
func (c *RemoteClassifier) Classify(ctx context.Context, imagePath string) ([]Prediction, error) {
	content, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("multipart write: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart close: %w", err)
	}

	u, err := c.buildURL("classify")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: endpoint is from trusted config, not user input
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, string(body))
	}

	var cr classifyResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return cr.Predictions, nil
}

func (c *RemoteClassifier) buildURL(p string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid classifier endpoint: %w", err)
	}
	u.Path = path.Join(u.Path, p)
	return u.String(), nil
}
