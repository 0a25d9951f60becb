// Package chain owns the multi-stage credential derivation across the two
// backends: device token to hub session, hub session to fleet token. Every
// authenticated call goes through DoHub or DoFleet, which transparently
// derive missing tokens and recover from a single 401 by refreshing and
// retrying exactly once. Tokens can expire between a validity check and
// their use; one bounded retry absorbs that race without looping forever
// against a backend that is rejecting credentials outright, for instance
// after a device revocation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/httperr"
	"github.com/fleetware/cardbridge/pkg/hub"
	"github.com/fleetware/cardbridge/pkg/store"
	"github.com/fleetware/cardbridge/pkg/telemetry"
)

// ErrNotAuthenticated is returned when no usable credential exists at the
// required stage of the chain and none can be derived.
var ErrNotAuthenticated = errors.New("not authenticated, run login first")

// RequestError reports that an authenticated call failed even after the
// bounded refresh-and-retry.
type RequestError struct {
	Service string
	Err     error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request failed after token refresh: %v", e.Service, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

type Manager struct {
	hub     *hub.Client
	store   store.Store
	log     *zap.SugaredLogger
	metrics *telemetry.Metrics

	// Serializes derivations so a refresh completes and persists before
	// the retried call is issued.
	mu sync.Mutex
}

func NewManager(hubClient *hub.Client, st store.Store, log *zap.SugaredLogger) *Manager {
	return &Manager{hub: hubClient, store: st, log: log}
}

// WithMetrics attaches daemon-mode counters. Safe to skip for one-shot CLI
// invocations.
func (m *Manager) WithMetrics(metrics *telemetry.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// SessionToken returns the current hub session token, deriving one from the
// persisted device token when none exists or the cached one is already past
// its JWT expiry.
func (m *Manager) SessionToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionTokenLocked(ctx)
}

func (m *Manager) sessionTokenLocked(ctx context.Context) (string, error) {
	creds, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if creds.SessionToken != "" && !Expired(creds.SessionToken, time.Now()) {
		return creds.SessionToken, nil
	}
	if creds.DeviceToken == "" {
		return "", ErrNotAuthenticated
	}
	return m.deriveSessionLocked(ctx, creds.DeviceToken)
}

func (m *Manager) deriveSessionLocked(ctx context.Context, deviceToken string) (string, error) {
	token, err := m.hub.CreateSession(ctx, deviceToken)
	if err != nil {
		return "", fmt.Errorf("deriving session: %w", err)
	}
	if err := m.store.Save(store.Credentials{SessionToken: token}); err != nil {
		return "", err
	}
	m.metrics.TokenRefresh("hub")
	m.log.Debugw("derived hub session token")
	return token, nil
}

// RefreshSession derives a fresh session from the device token, bypassing
// the cached value.
func (m *Manager) RefreshSession(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, err := m.store.Load()
	if err != nil {
		return "", err
	}
	if creds.DeviceToken == "" {
		return "", ErrNotAuthenticated
	}
	return m.deriveSessionLocked(ctx, creds.DeviceToken)
}

// FleetGrant returns the current fleet token and company id, minting the
// pair through the hub on first use. The fleet token is chained: it is
// issued by the hub on behalf of the authenticated session, never by the
// fleet service itself.
func (m *Manager) FleetGrant(ctx context.Context) (token, companyID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, err := m.store.Load()
	if err != nil {
		return "", "", err
	}
	if creds.FleetToken != "" && creds.FleetCompanyID != "" && !Expired(creds.FleetToken, time.Now()) {
		return creds.FleetToken, creds.FleetCompanyID, nil
	}
	return m.mintFleetGrantLocked(ctx)
}

// RefreshFleetGrant mints a fresh fleet token, bypassing the cached value.
func (m *Manager) RefreshFleetGrant(ctx context.Context) (token, companyID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mintFleetGrantLocked(ctx)
}

func (m *Manager) mintFleetGrantLocked(ctx context.Context) (string, string, error) {
	var grant *hub.FleetGrant
	err := m.doHubLocked(ctx, func(sessionToken string) error {
		g, err := m.hub.MintFleetToken(ctx, sessionToken)
		if err != nil {
			return err
		}
		grant = g
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if err := m.store.Save(store.Credentials{
		FleetToken:     grant.Token,
		FleetCompanyID: grant.CompanyID,
	}); err != nil {
		return "", "", err
	}
	m.metrics.TokenRefresh("fleet")
	m.log.Debugw("minted fleet token", "company", grant.CompanyID)
	return grant.Token, grant.CompanyID, nil
}

// DoHub runs fn with a valid session token. On a 401 it derives exactly one
// fresh session from the device token and retries once; a second 401 is
// surfaced as a RequestError.
func (m *Manager) DoHub(ctx context.Context, fn func(sessionToken string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doHubLocked(ctx, fn)
}

func (m *Manager) doHubLocked(ctx context.Context, fn func(sessionToken string) error) error {
	token, err := m.sessionTokenLocked(ctx)
	if err != nil {
		return err
	}
	err = fn(token)
	if err == nil || !httperr.IsUnauthorized(err) {
		return err
	}

	creds, loadErr := m.store.Load()
	if loadErr != nil {
		return loadErr
	}
	if creds.DeviceToken == "" {
		return &RequestError{Service: "hub", Err: err}
	}
	m.log.Debugw("hub returned 401, refreshing session and retrying once")
	token, err = m.deriveSessionLocked(ctx, creds.DeviceToken)
	if err != nil {
		return err
	}
	if err := fn(token); err != nil {
		if httperr.IsUnauthorized(err) {
			return &RequestError{Service: "hub", Err: err}
		}
		return err
	}
	return nil
}

// DoFleet runs fn with a valid fleet token and company id. On a 401 it
// force-refreshes the fleet grant and retries once; a second 401 is
// surfaced as a RequestError.
func (m *Manager) DoFleet(ctx context.Context, fn func(token, companyID string) error) error {
	token, companyID, err := m.FleetGrant(ctx)
	if err != nil {
		return err
	}
	err = fn(token, companyID)
	if err == nil || !httperr.IsUnauthorized(err) {
		return err
	}

	m.log.Debugw("fleet returned 401, minting fresh token and retrying once")
	token, companyID, err = m.RefreshFleetGrant(ctx)
	if err != nil {
		return err
	}
	if err := fn(token, companyID); err != nil {
		if httperr.IsUnauthorized(err) {
			return &RequestError{Service: "fleet", Err: err}
		}
		return err
	}
	return nil
}
