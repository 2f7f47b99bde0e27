package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stemsi/solvex/internal/response"
)

var (
	// ErrUpstream is returned when the exam service cannot be reached or answers
	// with something other than the standard envelope.
	ErrUpstream = errors.New("exam service unavailable")
	// ErrUnauthorized is returned when the exam service rejects the bearer token.
	ErrUnauthorized = errors.New("exam service rejected token")
)

// APIError is an error envelope returned by the exam service.
type APIError struct {
	Status int
	Code   response.ErrCode
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exam service: %d %s: %s", e.Status, e.Code, e.Msg)
}

// Client talks to the exam REST service using its JSON envelope.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client rooted at baseURL (e.g. http://exam-api/api/v1).
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends one request and decodes the envelope's data into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var env response.Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return fmt.Errorf("%w: %s %s: status %d: %v", ErrUpstream, method, path, resp.StatusCode, err)
	}

	if env.Error != nil || resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Msg = env.Error.Message
		}
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
		case resp.StatusCode >= http.StatusInternalServerError && env.Error == nil:
			return fmt.Errorf("%w: %w", ErrUpstream, apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s %s: empty data", ErrUpstream, method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrUpstream, method, path, err)
	}
	return nil
}
