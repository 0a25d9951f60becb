// Package httperr carries the typed HTTP error shared by the hub and fleet
// request helpers. The helpers raise it for every non-success status; flow
// code decides which statuses carry meaning (404 while polling, 409 while
// registering) via the status predicates here.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type Error struct {
	StatusCode int
	Message    string
	// Body is the raw response body. Tolerated-conflict handling needs it:
	// a 409 on bridge-client creation may still carry a usable device id.
	Body []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

// Decode drains the response body and builds an Error from it. Bodies are
// expected to be JSON objects with an "error" field, but plain-text and empty
// bodies are tolerated.
func Decode(resp *http.Response) *Error {
	var apiErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) > 0 {
		_ = json.Unmarshal(body, &apiErr)
	}
	msg := strings.TrimSpace(apiErr.Error)
	if msg == "" {
		msg = strings.TrimSpace(apiErr.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = resp.Status
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg, Body: body}
}

// IsStatus reports whether err is an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == code
	}
	return false
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}
