package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/desertthunder/dmsa/internal/shared"
)

// request describes one call. Auth marks endpoints that need a bearer token.
type request struct {
	base        *url.URL
	method      string
	path        string
	token       string
	auth        bool
	body        io.Reader
	contentType string
}

// jsonBody marshals v for a request body.
func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return bytes.NewReader(data), nil
}

// segment escapes a single path segment.
func segment(s string) string {
	return url.PathEscape(s)
}

// response is what send read off the wire. It is nil when no response arrived.
type response struct {
	status int
	header http.Header
	body   []byte
}

// send performs the request and reads the whole body.
// Non-2xx responses are returned together with an [*APIError].
func (c *Client) send(ctx context.Context, r request) (*response, error) {
	if r.auth && r.token == "" {
		return nil, shared.ErrNotAuthenticated
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	fullURL := r.base.String() + r.path
	req, err := http.NewRequestWithContext(ctx, r.method, fullURL, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		(&oauth2.Token{AccessToken: r.token, TokenType: "Bearer"}).SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	out := &response{status: resp.StatusCode, header: resp.Header, body: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, newAPIError(r.method, fullURL, resp.StatusCode, body)
	}
	return out, nil
}

// do sends r and decodes a JSON response into dest.
// An empty body leaves dest untouched. A body that is not JSON is a decode error.
func (c *Client) do(ctx context.Context, r request, dest any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	return decodeBody(resp.body, dest)
}

func decodeBody(body []byte, dest any) error {
	if dest == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return decodeError(body, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, base *url.URL, method, path, token string, auth bool, payload, dest any) error {
	r := request{base: base, method: method, path: path, token: token, auth: auth}
	if payload != nil {
		body, err := jsonBody(payload)
		if err != nil {
			return err
		}
		r.body = body
		r.contentType = "application/json"
	}
	return c.do(ctx, r, dest)
}
