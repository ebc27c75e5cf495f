// Package client provides an HTTP client for the rewards twin's /admin
// control plane.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/wondertwin-ai/rewardcatalog/pkg/twincore"
)

// AdminClient talks to twin /admin/* endpoints.
type AdminClient struct {
	baseURL string
	http    *http.Client
}

// New creates an AdminClient for the twin at baseURL with a 5-second timeout.
func New(baseURL string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health(ctx context.Context) (bool, string) {
	body, status, err := c.do(ctx, http.MethodGet, "/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	if status == http.StatusOK {
		return true, body
	}
	return false, fmt.Sprintf("status %d: %s", status, body)
}

// Reset calls POST /admin/reset, restoring the seed catalog and clearing
// faults, idempotency keys and the request log.
func (c *AdminClient) Reset(ctx context.Context) (string, error) {
	return c.expectOK(ctx, "reset", http.MethodPost, "/admin/reset", nil)
}

// Seed POSTs a state file to POST /admin/state. The file may carry
// comments and trailing commas.
func (c *AdminClient) Seed(ctx context.Context, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	return c.expectOK(ctx, "seed", http.MethodPost, "/admin/state", jsonc.ToJSON(data))
}

// Faults lists the injected faults keyed by request path.
func (c *AdminClient) Faults(ctx context.Context) (map[string]twincore.FaultConfig, error) {
	body, err := c.expectOK(ctx, "list faults", http.MethodGet, "/admin/faults", nil)
	if err != nil {
		return nil, err
	}
	faults := map[string]twincore.FaultConfig{}
	if err := json.Unmarshal([]byte(body), &faults); err != nil {
		return nil, fmt.Errorf("decoding faults: %w", err)
	}
	return faults, nil
}

// InjectFault registers fault for requests to path, e.g.
// /wp-json/pizza-rewards/v1/rewards.
func (c *AdminClient) InjectFault(ctx context.Context, path string, fault twincore.FaultConfig) error {
	payload, err := json.Marshal(fault)
	if err != nil {
		return err
	}
	_, err = c.expectOK(ctx, "inject fault", http.MethodPost, faultRoute(path), payload)
	return err
}

// ClearFault removes the fault registered for path.
func (c *AdminClient) ClearFault(ctx context.Context, path string) error {
	_, err := c.expectOK(ctx, "clear fault", http.MethodDelete, faultRoute(path), nil)
	return err
}

// Requests returns the twin's recent request log.
func (c *AdminClient) Requests(ctx context.Context) ([]twincore.RequestLogEntry, error) {
	body, err := c.expectOK(ctx, "list requests", http.MethodGet, "/admin/requests", nil)
	if err != nil {
		return nil, err
	}
	var entries []twincore.RequestLogEntry
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		return nil, fmt.Errorf("decoding requests: %w", err)
	}
	return entries, nil
}

func faultRoute(path string) string {
	return "/admin/fault/" + strings.TrimLeft(path, "/")
}

func (c *AdminClient) expectOK(ctx context.Context, what, method, path string, payload []byte) (string, error) {
	body, status, err := c.do(ctx, method, path, payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%s returned status %d: %s", what, status, body)
	}
	return body, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, payload []byte) (string, int, error) {
	target, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return "", 0, err
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(body)), resp.StatusCode, nil
}
