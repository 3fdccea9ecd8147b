package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gamplo/gamplo-go/pkg/exception"
	"github.com/google/uuid"
	"github.com/yanun0323/errors"
)

const (
	DefaultTimeout = 10 * time.Second

	// SessionHeader carries the session id on authenticated calls.
	SessionHeader   = "x-sdk-session"
	RequestIDHeader = "X-Request-Id"

	maxErrorBody = 64 << 10
)

// Client sends JSON requests to the backend and opens event streams.
type Client struct {
	baseURL string
	timeout time.Duration
	doer    *http.Client
}

// New creates a client. A zero timeout means DefaultTimeout; a nil doer means http.DefaultClient.
// The doer should not set its own Timeout, since it also carries long-lived streams.
func New(baseURL string, timeout time.Duration, doer *http.Client) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		doer:    doer,
	}
}

// BaseURL returns the backend root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the per-request timeout of Get and Post.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Get sends a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, headers map[string]string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, headers, out)
}

// Post sends body as JSON and decodes the JSON response into out.
func (c *Client) Post(ctx context.Context, path string, body any, headers map[string]string, out any) error {
	return c.do(ctx, http.MethodPost, path, body, headers, out)
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.resolve(path), reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		if ctx.Err() == nil && reqCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", exception.ErrRequestTimeout, c.timeout)
		}
		return fmt.Errorf("%w: %w", exception.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() == nil && reqCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w after %s", exception.ErrRequestTimeout, c.timeout)
		}
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// OpenStream issues a GET for a long-lived event stream. The request is aborted when ctx is done.
// The caller owns the returned body.
func (c *Client) OpenStream(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(url), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", exception.ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newAPIError(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, exception.ErrNoBody
	}
	return resp.Body, nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newAPIError(resp *http.Response) *exception.APIError {
	apiErr := &exception.APIError{
		Status:  resp.StatusCode,
		Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
	}

	text, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(text)) == 0 {
		return apiErr
	}
	apiErr.Message += ": " + string(text)

	var body errorBody
	if json.Unmarshal(text, &body) == nil {
		apiErr.Code = body.Code
	}
	return apiErr
}
