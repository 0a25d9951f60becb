package httperr

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"json error field", http.StatusBadRequest, `{"error":"bad input"}`, "bad input"},
		{"json message field", http.StatusForbidden, `{"message":"denied"}`, "denied"},
		{"plain text", http.StatusInternalServerError, "boom", "boom"},
		{"empty body falls back to status", http.StatusBadGateway, "", "502 Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Decode(fakeResponse(tt.status, tt.body))
			require.Equal(t, tt.status, err.StatusCode)
			require.Equal(t, tt.wantMsg, err.Message)
		})
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{StatusCode: http.StatusConflict, Message: "already exists"}
	require.Equal(t, "request failed (409): already exists", err.Error())
}

func TestStatusPredicates(t *testing.T) {
	wrapped := fmt.Errorf("calling fleet: %w", &Error{StatusCode: http.StatusNotFound, Message: "absent"})
	require.True(t, IsNotFound(wrapped))
	require.False(t, IsUnauthorized(wrapped))
	require.True(t, IsStatus(wrapped, http.StatusNotFound))
	require.False(t, IsConflict(wrapped))
	require.False(t, IsNotFound(fmt.Errorf("plain error")))
}
