// Package client talks to the ERP server over HTTP. It is the identity
// provider and directory reader behind a session.Context on the command
// line, and a thin proxy for callable functions and ERP listings.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mutamba/erp-backend/internal/dto"
)

const apiKeyHeader = "X-Api-Key"

// APIError is a non-2xx answer from a REST route.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

var ErrNotSignedIn = errors.New("not signed in")

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu      sync.Mutex
	session *dto.AuthResponse
	seq     uint64
	subs    map[int]*subscriber
	nextSub int
}

func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		subs:    make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

// RefreshToken returns the current refresh token, for persisting a session.
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.RefreshToken
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	if tok := c.accessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// send performs the request. A 401 on an authenticated request triggers one
// token refresh and a retry.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || req.Header.Get("Authorization") == "" || c.RefreshToken() == "" {
		return resp, nil
	}

	resp.Body.Close()
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	req, err = c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// doJSON sends a REST request and decodes a 2xx body into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body dto.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
}

func query(values map[string]string) string {
	q := url.Values{}
	for k, v := range values {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
