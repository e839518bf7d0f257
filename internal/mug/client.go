package mug

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/glabrego/mug-cli/internal/metrics"
)

// Screenshots are inline base64 thumbnails, so responses can be large.
const maxResponseBytes = 32 << 20

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) List(ctx context.Context) ([]MonitoredURL, error) {
	var urls []MonitoredURL
	if err := c.do(ctx, "list urls", http.MethodGet, "/list", nil, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

func (c *Client) AddURL(ctx context.Context, rawURL string) (int64, error) {
	req := struct {
		URL string `json:"url"`
	}{URL: rawURL}
	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, "add url", http.MethodPost, "/url/add", req, &resp); err != nil {
		return 0, err
	}
	if resp.ID == 0 {
		return 0, &ProtocolError{Op: "add url", Err: errors.New("response has no id")}
	}
	return resp.ID, nil
}

func (c *Client) DeleteURL(ctx context.Context, id int64) error {
	return c.do(ctx, "delete url", http.MethodDelete, "/url/delete/"+idPath(id), nil, nil)
}

// TriggerScan asks the backend to capture a fresh current image. Some
// backends answer with the capture itself; that payload is returned, or ""
// for a bare acknowledgement.
func (c *Client) TriggerScan(ctx context.Context, id int64) (string, error) {
	var resp struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, "trigger scan", http.MethodGet, "/url/scan/"+idPath(id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Data, nil
}

// ScanAll queues a capture of the given kind ("current" or "reference") for
// every URL and returns the queued ids.
func (c *Client) ScanAll(ctx context.Context, kind string) ([]int64, error) {
	req := struct {
		Type string `json:"type"`
	}{Type: kind}
	var resp struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.do(ctx, "scan all", http.MethodPost, "/scan", req, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (c *Client) CurrentImage(ctx context.Context, id int64) (string, error) {
	return c.image(ctx, "fetch current image", "/screenshot/scan/"+idPath(id))
}

func (c *Client) ReferenceImage(ctx context.Context, id int64) (string, error) {
	return c.image(ctx, "fetch reference image", "/screenshot/reference/get/"+idPath(id))
}

func (c *Client) StoredImage(ctx context.Context, id int64) (string, error) {
	return c.image(ctx, "fetch stored image", "/screenshot/get/"+idPath(id))
}

func (c *Client) InitReference(ctx context.Context, id int64) error {
	return c.do(ctx, "init reference", http.MethodGet, "/init/"+idPath(id), nil, nil)
}

func (c *Client) Merge(ctx context.Context, id int64) error {
	return c.do(ctx, "merge", http.MethodGet, "/merge/"+idPath(id), nil, nil)
}

func (c *Client) Diff(ctx context.Context, id int64) (DiffResult, error) {
	var resp DiffResult
	if err := c.do(ctx, "diff", http.MethodGet, "/pdiff/"+idPath(id), nil, &resp); err != nil {
		return DiffResult{}, err
	}
	return resp, nil
}

// PollUpdate pulls at most one pending change. It returns nil when the
// backend sent an empty body.
func (c *Client) PollUpdate(ctx context.Context) (*Update, error) {
	var resp *Update
	if err := c.do(ctx, "poll updates", http.MethodGet, "/updates", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) image(ctx context.Context, op, path string) (string, error) {
	var resp struct {
		Data string `json:"data"`
	}
	if err := c.do(ctx, op, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Data) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrNotReady)
	}
	return resp.Data, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BackendRequests.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.BackendRequests.WithLabelValues(op, "status_"+strconv.Itoa(resp.StatusCode)).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.BackendRequests.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	metrics.BackendRequests.WithLabelValues(op, "ok").Inc()

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ProtocolError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	fullURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

func idPath(id int64) string {
	return strconv.FormatInt(id, 10)
}
