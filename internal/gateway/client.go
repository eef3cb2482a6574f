package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/sony/gobreaker"

	"github.com/linnemanlabs/firewatch/internal/alert"
)

const maxResponseBytes = 5 << 20

// Client calls the primary alert/detection service. Every call goes through
// a circuit breaker: once the primary has failed repeatedly the breaker
// short-circuits straight to the error path, and the gateway falls back
// without burning a timeout per request.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a primary-service client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "primary-alert-service",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// ListAlerts fetches all alerts from the primary.
func (c *Client) ListAlerts(ctx context.Context) ([]alert.Alert, error) {
	var out []alert.Alert
	err := c.do(ctx, http.MethodGet, "alerts", nil, &out)
	return out, err
}

// CreateAlert creates an alert on the primary.
func (c *Client) CreateAlert(ctx context.Context, d alert.Draft) (*alert.Alert, error) {
	var out alert.Alert
	if err := c.do(ctx, http.MethodPost, "alerts", d, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Acknowledge transitions an alert on the primary.
func (c *Client) Acknowledge(ctx context.Context, id int64) (*alert.Alert, error) {
	var out alert.Alert
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("alerts/%d/acknowledge", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve transitions an alert on the primary.
func (c *Client) Resolve(ctx context.Context, id int64) (*alert.Alert, error) {
	var out alert.Alert
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("alerts/%d/resolve", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Detect runs detection on the primary without creating an alert.
func (c *Client) Detect(ctx context.Context, req DetectRequest) (*DetectResult, error) {
	var out DetectResult
	if err := c.do(ctx, http.MethodPost, "detect", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectAndAlert runs detection on the primary and lets it create the alert.
func (c *Client) DetectAndAlert(ctx context.Context, req DetectRequest) (*DetectOutcome, error) {
	var out DetectOutcome
	if err := c.do(ctx, http.MethodPost, "detect-and-alert", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDetect forwards the raw uploaded payload to the primary detection
// endpoint as multipart form data.
func (c *Client) UploadDetect(ctx context.Context, filename string, content []byte) (*DetectOutcome, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("multipart: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("multipart write: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipart close: %w", err)
	}

	u, err := c.buildURL("detect/upload")
	if err != nil {
		return nil, err
	}

	var out DetectOutcome
	err = c.execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return c.roundTrip(req, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// do runs one JSON request through the breaker. Any failure mode — breaker
// open, connection error, timeout, non-2xx, malformed body — comes back as a
// plain error; callers treat them all as "primary unavailable".
func (c *Client) do(ctx context.Context, method, p string, in, out any) error {
	u, err := c.buildURL(p)
	if err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	return c.execute(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, u, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.roundTrip(req, out)
	})
}

func (c *Client) execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func (c *Client) roundTrip(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: base URL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("primary request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("primary returned %d: %s", resp.StatusCode, truncate(body, 256))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("malformed primary response: %w", err)
		}
	}
	return nil
}

func (c *Client) buildURL(p string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid primary endpoint: %w", err)
	}
	u.Path = path.Join(u.Path, p)
	return u.String(), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
