// Package client is a thin HTTP client for the orchestrator API.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StartRequest is the body of a run submission
type StartRequest struct {
	Items  []domain.ContentItem `json:"items"`
	Config domain.RunConfig     `json:"config"`
}

// StartResponse is the answer to a run submission
type StartResponse struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id"`
}

type stopResponse struct {
	Accepted bool `json:"accepted"`
}

// Client talks to one orchestrator instance
type Client struct {
	http *resty.Client
}

// New creates a client for baseURL
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &Client{http: c}
}

// Start submits a run
func (c *Client) Start(ctx context.Context, req StartRequest) (*StartResponse, error) {
	var out StartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/v1/runs")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop asks the active run to stop and reports whether one was signalled
func (c *Client) Stop(ctx context.Context) (bool, error) {
	var out stopResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/api/v1/runs/stop")
	if err := check(resp, err); err != nil {
		return false, err
	}
	return out.Accepted, nil
}

// State fetches the job snapshot
func (c *Client) State(ctx context.Context, withItems bool) (*domain.JobState, error) {
	var out domain.JobState
	req := c.http.R().
		SetContext(ctx).
		SetResult(&out)
	if !withItems {
		req.SetQueryParam("items", "false")
	}
	resp, err := req.Get("/api/v1/runs/state")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
	if body, ok := resp.Error().(*errorBody); ok && body.Error.Message != "" {
		apiErr.Code = body.Error.Code
		apiErr.Message = body.Error.Message
	}
	return apiErr
}
