// Raw requests for exploring either service from the command line
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Raw sends method to path on the named service ("user" or "media") and returns the response as-is.
//
// Unlike the typed calls, a non-2xx status is returned as a response together with its [*APIError],
// and the token is optional.
func (c *Client) Raw(ctx context.Context, service, method, path, token string, data []byte) (*APIResponse, error) {
	base, err := c.baseFor(service)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	r := request{base: base, method: method, path: path, token: token}
	if data != nil {
		r.body = bytes.NewReader(data)
		r.contentType = "application/json"
	}

	resp, err := c.send(ctx, r)
	if resp == nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.status, Headers: resp.header, Body: resp.body}

	var jsonData any
	if json.Unmarshal(resp.body, &jsonData) == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}
	return apiResp, err
}

// Get performs a GET request against service and returns the raw response.
func (c *Client) Get(ctx context.Context, service, path, token string) (*APIResponse, error) {
	return c.Raw(ctx, service, http.MethodGet, path, token, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (c *Client) Post(ctx context.Context, service, path, token string, data []byte) (*APIResponse, error) {
	if data == nil {
		data = []byte{}
	}
	return c.Raw(ctx, service, http.MethodPost, path, token, data)
}
