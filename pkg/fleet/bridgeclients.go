package fleet

import (
	"context"
	"net/http"
	"net/url"
)

// BridgeClient is the fleet-side registration object representing this
// device's card-reading capability. The DeviceID is server-assigned and not
// derivable from the client-chosen identifier.
type BridgeClient struct {
	DeviceID         string `json:"device_id"`
	ClientIdentifier string `json:"client_identifier"`
}

type createBridgeClientRequest struct {
	ClientIdentifier string `json:"client_identifier"`
}

// GetBridgeClient looks up the registration under its server-assigned device
// id. A 404 surfaces as an HTTP error meaning the cached id is stale.
func (c *Client) GetBridgeClient(ctx context.Context, token, companyID, deviceID string) (*BridgeClient, error) {
	endpoint := c.companyPath(companyID, "tachograph-company-card-clients", url.PathEscape(deviceID))
	var bc BridgeClient
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &bc); err != nil {
		return nil, err
	}
	return &bc, nil
}

// CreateBridgeClient registers the device under its stable client
// identifier. A 409 means a registration with that identifier already
// exists; the conflict response may or may not carry a usable device id.
func (c *Client) CreateBridgeClient(ctx context.Context, token, companyID, clientIdentifier string) (*BridgeClient, error) {
	endpoint := c.companyPath(companyID, "tachograph-company-card-clients")
	var bc BridgeClient
	req := createBridgeClientRequest{ClientIdentifier: clientIdentifier}
	if err := c.do(ctx, http.MethodPost, endpoint, token, req, &bc); err != nil {
		return nil, err
	}
	return &bc, nil
}

// DeleteBridgeClient removes the registration. Used when an operator
// decommissions a device.
func (c *Client) DeleteBridgeClient(ctx context.Context, token, companyID, deviceID string) error {
	endpoint := c.companyPath(companyID, "tachograph-company-card-clients", url.PathEscape(deviceID))
	return c.do(ctx, http.MethodDelete, endpoint, token, nil, nil)
}
