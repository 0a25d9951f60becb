package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/cardbridge/pkg/httperr"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "missing server", opts: []Option{}, wantErr: true},
		{name: "valid", opts: []Option{WithServer("https://hub.example.com")}, wantErr: false},
		{name: "empty server", opts: []Option{WithServer("")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, c)
			} else {
				require.NoError(t, err)
				require.NotNil(t, c)
			}
		})
	}
}

func TestRequestDeviceAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/device/authentication-token", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token": "pending-token",
			"url":   "https://hub.example.com/approve?t=pending-token",
		})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	auth, err := c.RequestDeviceAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pending-token", auth.Token)
	assert.Contains(t, auth.URL, "approve")
}

func TestCheckDeviceAuthorizationPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/device/authentication-token/check", r.URL.Path)
		require.Equal(t, "pending-token", r.URL.Query().Get("token"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	_, err = c.CheckDeviceAuthorization(context.Background(), "pending-token")
	require.Error(t, err)
	assert.True(t, httperr.IsNotFound(err))
}

func TestCheckDeviceAuthorizationConfirmed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	result, err := c.CheckDeviceAuthorization(context.Background(), "pending-token")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestRegisterDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/device", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "approved-token", req["token"])
		require.Equal(t, "office-laptop", req["deviceName"])
		require.Equal(t, "linux", req["devicePlatform"])
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "device-token"})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	token, err := c.RegisterDevice(context.Background(), "approved-token", DeviceInfo{
		DeviceName:     "office-laptop",
		DevicePlatform: "linux",
	})
	require.NoError(t, err)
	assert.Equal(t, "device-token", token)
}

func TestRegisterDeviceMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	_, err = c.RegisterDevice(context.Background(), "approved-token", DeviceInfo{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing token")
}

func TestCreateSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/session", r.URL.Path)
		require.Equal(t, "Bearer device-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "session-token"})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	token, err := c.CreateSession(context.Background(), "device-token")
	require.NoError(t, err)
	assert.Equal(t, "session-token", token)
}

func TestMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/me", r.URL.Path)
		require.ElementsMatch(t, []string{"currentOrganization.name", "current_role"}, r.URL.Query()["relations[]"])
		require.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           42,
			"email":        "driver@example.com",
			"firstName":    "Jo",
			"lastName":     "Driver",
			"current_role": "manager",
			"currentOrganization": map[string]string{
				"name": "Example Logistics",
			},
		})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	user, err := c.Me(context.Background(), "session-token")
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)
	assert.Equal(t, "manager", user.Role)
	assert.Equal(t, "Example Logistics", user.OrganizationName())
	assert.Equal(t, "Jo Driver", user.FullName())
}

func TestMintFleetToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/actions/management/fleet/tokens", r.URL.Path)
		require.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":      "fleet-token",
			"company_id": "77",
		})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	grant, err := c.MintFleetToken(context.Background(), "session-token")
	require.NoError(t, err)
	assert.Equal(t, "fleet-token", grant.Token)
	assert.Equal(t, "77", grant.CompanyID)
}

func TestMintFleetTokenMissingCompany(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "fleet-token"})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	_, err = c.MintFleetToken(context.Background(), "session-token")
	require.Error(t, err)
}

func TestDoDecodesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	}))
	defer server.Close()

	c, err := New(WithServer(server.URL))
	require.NoError(t, err)

	_, err = c.CreateSession(context.Background(), "stale")
	require.Error(t, err)
	assert.True(t, httperr.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "token expired")
}
