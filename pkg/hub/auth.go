package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// DeviceAuthorization is the pending browser confirmation handle: the token
// identifies the attempt, the URL is opened for the user to approve it.
type DeviceAuthorization struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// DeviceInfo describes this installation when exchanging an approved
// authorization token for a device token.
type DeviceInfo struct {
	DeviceName         string `json:"deviceName"`
	DevicePlatform     string `json:"devicePlatform"`
	DeviceModel        string `json:"deviceModel"`
	OSVersion          string `json:"osVersion"`
	ApplicationVersion string `json:"applicationVersion"`
	DeviceManufacturer string `json:"deviceManufacturer"`
}

// User is the read-only identity snapshot fetched after session creation.
// It is held in memory only and never persisted.
type User struct {
	ID                  int64        `json:"id"`
	Email               string       `json:"email"`
	FirstName           string       `json:"firstName"`
	LastName            string       `json:"lastName"`
	Role                string       `json:"current_role"`
	CurrentOrganization Organization `json:"currentOrganization"`
}

type Organization struct {
	Name string `json:"name"`
}

func (u *User) OrganizationName() string {
	return u.CurrentOrganization.Name
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// FleetGrant is the cross-service credential minted by the hub on behalf of
// an authenticated session.
type FleetGrant struct {
	Token     string `json:"token"`
	CompanyID string `json:"company_id"`
}

// RequestDeviceAuthorization starts a browser-based login attempt.
func (c *Client) RequestDeviceAuthorization(ctx context.Context) (*DeviceAuthorization, error) {
	var auth DeviceAuthorization
	if err := c.do(ctx, http.MethodPost, "auth/device/authentication-token", "", nil, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// CheckResult reports whether the user confirmed the pending token. The hub
// answers 404 while the confirmation is outstanding; that status is raised
// as an HTTP error here and interpreted by the polling loop.
type CheckResult struct {
	Success bool `json:"success"`
}

// CheckDeviceAuthorization asks whether the pending token was confirmed.
func (c *Client) CheckDeviceAuthorization(ctx context.Context, token string) (*CheckResult, error) {
	endpoint := fmt.Sprintf("auth/device/authentication-token/check?%s", url.Values{"token": {token}}.Encode())
	var result CheckResult
	if err := c.do(ctx, http.MethodGet, endpoint, "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type tokenResponse struct {
	Token string `json:"token"`
}

type registerDeviceRequest struct {
	Token string `json:"token"`
	DeviceInfo
}

// RegisterDevice exchanges a confirmed authorization token for a long-lived
// device token.
func (c *Client) RegisterDevice(ctx context.Context, authToken string, info DeviceInfo) (string, error) {
	var resp tokenResponse
	req := registerDeviceRequest{Token: authToken, DeviceInfo: info}
	if err := c.do(ctx, http.MethodPost, "auth/device", "", req, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("device registration response missing token")
	}
	return resp.Token, nil
}

// CreateSession exchanges a device token for a session token.
func (c *Client) CreateSession(ctx context.Context, deviceToken string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "auth/session", deviceToken, nil, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("session response missing token")
	}
	return resp.Token, nil
}

// Me fetches the user identity with role and organization relations.
func (c *Client) Me(ctx context.Context, sessionToken string) (*User, error) {
	endpoint := "rest/me?" + url.Values{"relations[]": {"currentOrganization.name", "current_role"}}.Encode()
	var user User
	if err := c.do(ctx, http.MethodGet, endpoint, sessionToken, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// MintFleetToken derives the fleet credential from an authenticated hub
// session. Fleet tokens are issued by the hub, not by the fleet service.
func (c *Client) MintFleetToken(ctx context.Context, sessionToken string) (*FleetGrant, error) {
	var grant FleetGrant
	if err := c.do(ctx, http.MethodPost, "actions/management/fleet/tokens", sessionToken, nil, &grant); err != nil {
		return nil, err
	}
	if grant.Token == "" || grant.CompanyID == "" {
		return nil, fmt.Errorf("fleet token response missing token or company id")
	}
	return &grant, nil
}
