// Package remote talks to the two upstream services: the mail service (send,
// token verification) and the config service (SMTP configs, passkeys,
// message history).
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrRejected is returned when a service answers 2xx with success=false
var ErrRejected = errors.New("request rejected")

// Error is a non-2xx answer from a service
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote status %d", e.Status)
	}
	return fmt.Sprintf("remote status %d: %s", e.Status, e.Message)
}

// envelope is the {success, error} wrapper both services answer with
type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client is a small JSON-over-HTTP client bound to one service base URL
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client
}

// NewClient creates a client for baseURL. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "bulkmail",
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
}

// call performs one request and returns the response body. Non-2xx answers
// become *Error. Cancelling ctx returns ctx.Err() without waiting for the
// transport.
func (c *Client) call(ctx context.Context, method, path string, headers map[string]string, in interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return nil, fmt.Errorf("encode request: %w", err)
		}
		req.Header.SetContentType("application/json")
		req.SetBody(payload)
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout == 0 || remaining < timeout {
			timeout = remaining
		}
	}

	done := make(chan error, 1)
	go func() {
		if timeout > 0 {
			done <- c.http.DoTimeout(req, resp, timeout)
			return
		}
		done <- c.http.Do(req, resp)
	}()

	select {
	case <-ctx.Done():
		// req and resp are still owned by the transport goroutine; they are
		// left to the garbage collector instead of going back to the pool.
		return nil, ctx.Err()
	case err := <-done:
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, err)
		}

		body := append([]byte(nil), resp.Body()...)
		status := resp.StatusCode()
		if status < 200 || status > 299 {
			var env envelope
			_ = json.Unmarshal(body, &env)
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			return nil, &Error{Status: status, Message: msg}
		}
		return body, nil
	}
}

// expectSuccess enforces the {success:true} contract of the verify and send endpoints
func expectSuccess(body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%w: %s", ErrRejected, env.Error)
		}
		return ErrRejected
	}
	return nil
}

// expectAccepted checks the reply of a mutating call. Empty bodies and bodies
// without a success field count as accepted; an explicit success:false does not.
func expectAccepted(body []byte) error {
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}
	var env struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Success == nil || *env.Success {
		return nil
	}
	if env.Error != "" {
		return fmt.Errorf("%w: %s", ErrRejected, env.Error)
	}
	return ErrRejected
}

func decode(body []byte, out interface{}) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
