// Package backend provides an HTTP client for the Store Backend's reward
// REST API (the pizza-rewards WordPress namespace).
package backend

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

	"github.com/wondertwin-ai/rewardcatalog/internal/reward"
)

// Namespace is the REST route prefix every endpoint lives under.
const Namespace = "/wp-json/pizza-rewards/v1"

// Header names understood by the Store Backend.
const (
	NonceHeader          = "X-WP-Nonce"
	IdempotencyKeyHeader = "Idempotency-Key"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
	ErrServerError  = errors.New("backend: server error")
	ErrRateLimited  = errors.New("backend: rate limited")
)

// APIError is a non-2xx response. Code and Message come from the WordPress
// REST error body when the server sent one.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: http %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("backend: http %d", e.Status)
}

// Is maps the response status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrServerError:
		return e.Status >= 500
	}
	return false
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// Client talks to the Store Backend. Every call is a single attempt; the
// caller decides whether to try again.
type Client struct {
	baseURL    string
	nonce      string
	httpClient *http.Client
}

// New creates a Client for the site at baseURL (for example
// "http://localhost:4300"). The namespace is appended automatically.
func New(baseURL, nonce string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		nonce:      strings.TrimSpace(nonce),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type idempotencyKey struct{}

// WithIdempotencyKey returns a context whose POST requests carry key in the
// Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey{}, key)
}

// IdempotencyKeyFrom returns the key set by WithIdempotencyKey, or "".
func IdempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey{}).(string)
	return key
}

// ListRewards fetches every reward.
func (c *Client) ListRewards(ctx context.Context) ([]reward.Reward, error) {
	var rewards []reward.Reward
	if err := c.do(ctx, http.MethodGet, "/rewards", nil, &rewards); err != nil {
		return nil, err
	}
	return rewards, nil
}

// CreateReward posts a draft and returns the stored reward with the id the
// backend assigned.
func (c *Client) CreateReward(ctx context.Context, draft reward.Reward) (reward.Reward, error) {
	var created reward.Reward
	if err := c.do(ctx, http.MethodPost, "/rewards", draft, &created); err != nil {
		return reward.Reward{}, err
	}
	return created, nil
}

// UpdateReward replaces the full record stored under r.ID.
func (c *Client) UpdateReward(ctx context.Context, r reward.Reward) (reward.Reward, error) {
	var updated reward.Reward
	if err := c.do(ctx, http.MethodPut, rewardPath(r.ID), r, &updated); err != nil {
		return reward.Reward{}, err
	}
	return updated, nil
}

// DeleteReward removes the reward with the given id.
func (c *Client) DeleteReward(ctx context.Context, id int) error {
	var ack struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, rewardPath(id), nil, &ack); err != nil {
		return err
	}
	if !ack.Deleted {
		return fmt.Errorf("backend: delete of reward %d was not acknowledged", id)
	}
	return nil
}

// ListStores fetches the store reference data.
func (c *Client) ListStores(ctx context.Context) ([]reward.Store, error) {
	var stores []reward.Store
	if err := c.do(ctx, http.MethodGet, "/stores", nil, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func rewardPath(id int) string {
	return "/rewards/" + strconv.Itoa(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return errors.New("backend: empty base url")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+Namespace+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.nonce != "" {
		req.Header.Set(NonceHeader, c.nonce)
	}
	if method == http.MethodPost {
		if key := IdempotencyKeyFrom(ctx); key != "" {
			req.Header.Set(IdempotencyKeyHeader, key)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
