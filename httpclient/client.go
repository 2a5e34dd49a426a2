package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// maxResponseBody bounds how much of a response is read into memory.
const maxResponseBody = 10 << 20

// APIError is the structured failure reported by the backend, either through
// the {success:false, error} envelope or as a bare non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("httpclient: api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: api error (status %d)", e.StatusCode)
}

// Client is a JSON convenience wrapper over an authenticated *http.Client.
//
// Every response passes through the envelope stage: when the body carries the
// generic {success, data, error} envelope, an unsuccessful envelope surfaces
// as *APIError regardless of HTTP status, and a successful one is unwrapped
// to its data payload before decoding. Responses without an envelope are
// decoded as-is.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client over the given HTTP client (typically built
// with Builder so the session transport is in place) and base URL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Do performs a request and returns the (envelope-unwrapped) payload bytes.
//
// Parameters:
//   - ctx: Context for the request
//   - method: HTTP method
//   - path: Path relative to the base URL (leading slash optional)
//   - body: Optional request body, marshalled to JSON when non-nil
func (c *Client) Do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	url := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("httpclient: read response: %w", err)
	}

	return unwrap(resp.StatusCode, raw)
}

// GetJSON performs a GET and decodes the payload into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON performs a POST with the given body and decodes the payload into
// out. Pass a nil out to discard the payload.
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

// PutJSON performs a PUT with the given body and decodes the payload into out.
func (c *Client) PutJSON(ctx context.Context, path string, body, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out)
}

// DeleteJSON performs a DELETE and decodes the payload into out, if any.
func (c *Client) DeleteJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	payload, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

// unwrap applies the envelope stage to a response body.
func unwrap(status int, raw []byte) ([]byte, error) {
	if success := gjson.GetBytes(raw, "success"); success.Exists() {
		if !success.Bool() {
			return nil, &APIError{StatusCode: status, Message: envelopeMessage(raw)}
		}
		raw = []byte(gjson.GetBytes(raw, "data").Raw)
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Message: envelopeMessage(raw)}
	}

	return raw, nil
}

func envelopeMessage(raw []byte) string {
	if msg := gjson.GetBytes(raw, "error").String(); msg != "" {
		return msg
	}
	return gjson.GetBytes(raw, "message").String()
}
