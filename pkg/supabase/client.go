// Package supabase is a thin client for the hosted backend's auth (GoTrue) and
// storage REST endpoints. All calls go through the shared request wrapper.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go-events-backend/pkg/request"
)

// APIError is a non-2xx answer from the hosted backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: status %d: %s", e.Status, e.Message)
}

// IsClientError reports whether err is a 4xx answer (bad code, expired token, ...).
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	req        *request.Client
}

func New(baseURL, anonKey, serviceKey string, req *request.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		serviceKey: serviceKey,
		req:        req,
	}
}

// JWKSURL is the hosted auth JWKS endpoint.
func (c *Client) JWKSURL() string {
	return c.baseURL + "/auth/v1/.well-known/jwks.json"
}

func (c *Client) do(ctx context.Context, method, path string, bearer string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	header := http.Header{}
	header.Set("apikey", c.anonKey)
	header.Set("Content-Type", "application/json")
	if bearer != "" {
		header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.req.Do(ctx, method, c.baseURL+path, header, payload)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

// errorMessage picks the human message out of GoTrue/Storage error bodies.
func errorMessage(body []byte) string {
	var errResp map[string]interface{}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return strings.TrimSpace(string(body))
	}
	for _, key := range []string{"msg", "error_description", "message", "error"} {
		if m, ok := errResp[key].(string); ok && m != "" {
			return m
		}
	}
	return "unknown error"
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
