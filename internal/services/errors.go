package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/dmsa/internal/models"
	"github.com/desertthunder/dmsa/internal/shared"
)

// APIError is a non-2xx response from either service.
//
// Error() embeds the status and the body, e.g. `HTTP 409: {"code":"CONFLICT",...}`.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
	// Service is the parsed error body when the service sent one.
	Service *models.ServiceError
}

func newAPIError(method, url string, status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Method: method, URL: url, Body: body}

	var se models.ServiceError
	if json.Unmarshal(body, &se) == nil && (se.Code != "" || se.Message != "") {
		e.Service = &se
	}
	return e
}

func (e *APIError) Error() string {
	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

func (e *APIError) Unwrap() error {
	return shared.ErrAPIRequest
}

// Message returns the service's message when present, else the full error text.
func (e *APIError) Message() string {
	if e.Service != nil && e.Service.Message != "" {
		return e.Service.Message
	}
	return e.Error()
}

// StatusCode extracts the HTTP status from err, or 0 when err is not an [APIError].
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 from either service, meaning the token was
// rejected. A 403 is a permission failure on an accepted token and does not match.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// decodeError wraps [shared.ErrDecode] and keeps the raw body text for display.
func decodeError(body []byte, cause error) error {
	text := string(bytes.TrimSpace(body))
	if len(text) > 512 {
		text = text[:512] + "..."
	}
	return fmt.Errorf("%w: %v: %s", shared.ErrDecode, cause, text)
}
