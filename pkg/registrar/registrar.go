// Package registrar ensures this device's registration object exists in the
// fleet service and is reachable under a verified device id. The device id
// is server-assigned and cannot be derived from the client-chosen bridge
// identifier, and creation can conflict with a registration left behind by
// a previous run of the same physical device, so the protocol is
// verify-then-create-then-reverify, bounded to two full attempts.
package registrar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/httperr"
	"github.com/fleetware/cardbridge/pkg/store"
)

const maxAttempts = 2

// VerificationError reports an unexpected status while checking an existing
// registration. 404 is not one: it just means the cached id is stale.
type VerificationError struct {
	Err error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("could not verify bridge client registration: %v", e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ResolutionError reports that no verified device id could be obtained
// within the bounded attempts. It is surfaced to the caller instead of
// retrying silently against a misbehaving backend.
type ResolutionError struct {
	Attempts int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve bridge client registration after %d attempts", e.Attempts)
}

type Registrar struct {
	fleet *fleet.Client
	chain *chain.Manager
	store store.Store
	log   *zap.SugaredLogger
}

func New(fleetClient *fleet.Client, chainManager *chain.Manager, st store.Store, log *zap.SugaredLogger) *Registrar {
	return &Registrar{fleet: fleetClient, chain: chainManager, store: st, log: log}
}

// Ensure returns a verified device id for this bridge client, creating the
// registration when missing. A cached id that 404s is treated as stale for
// the current attempt but kept in storage: a create that conflicts without
// returning a device id falls back to re-verifying it, which tolerates the
// inherent create-if-missing race.
func (r *Registrar) Ensure(ctx context.Context) (string, error) {
	clientID, err := store.EnsureBridgeClientID(r.store)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		creds, err := r.store.Load()
		if err != nil {
			return "", err
		}

		if creds.BridgeDeviceID != "" {
			verified, err := r.verify(ctx, creds.BridgeDeviceID)
			if err != nil {
				return "", err
			}
			if verified {
				return creds.BridgeDeviceID, nil
			}
			r.log.Debugw("cached bridge device id is stale", "deviceID", creds.BridgeDeviceID, "attempt", attempt)
		}

		deviceID, retry, err := r.create(ctx, clientID, creds.BridgeDeviceID)
		if err != nil {
			return "", err
		}
		if deviceID != "" {
			if err := r.store.Save(store.Credentials{BridgeDeviceID: deviceID}); err != nil {
				return "", err
			}
			r.log.Infow("bridge client registered", "deviceID", deviceID)
			return deviceID, nil
		}
		if !retry {
			return "", &ResolutionError{Attempts: attempt}
		}
	}
	return "", &ResolutionError{Attempts: maxAttempts}
}

// verify reports whether the cached device id still resolves. 404 yields
// (false, nil); other failures are fatal.
func (r *Registrar) verify(ctx context.Context, deviceID string) (bool, error) {
	err := r.chain.DoFleet(ctx, func(token, companyID string) error {
		_, err := r.fleet.GetBridgeClient(ctx, token, companyID, deviceID)
		return err
	})
	if err == nil {
		return true, nil
	}
	if httperr.IsNotFound(err) {
		return false, nil
	}
	return false, &VerificationError{Err: err}
}

// create registers the client identifier. A 409 is success-equivalent when
// a usable device id can still be resolved: either from the conflict body
// or, failing that, from the previously cached id, in which case the caller
// loops to re-verify it.
func (r *Registrar) create(ctx context.Context, clientID, cachedDeviceID string) (deviceID string, retry bool, err error) {
	var created *fleet.BridgeClient
	err = r.chain.DoFleet(ctx, func(token, companyID string) error {
		bc, err := r.fleet.CreateBridgeClient(ctx, token, companyID, clientID)
		if err != nil {
			return err
		}
		created = bc
		return nil
	})
	if err != nil {
		if !httperr.IsConflict(err) {
			return "", false, fmt.Errorf("creating bridge client: %w", err)
		}
		if id := conflictDeviceID(err); id != "" {
			return id, false, nil
		}
		if cachedDeviceID != "" {
			// Keep the cached id and let the caller re-verify it.
			return "", true, nil
		}
		return "", false, nil
	}
	if created == nil || created.DeviceID == "" {
		if cachedDeviceID != "" {
			return "", true, nil
		}
		return "", false, nil
	}
	return created.DeviceID, false, nil
}

// conflictDeviceID extracts a device id from a 409 response body, when the
// service echoes the existing registration.
func conflictDeviceID(err error) string {
	var httpErr *httperr.Error
	if !errors.As(err, &httpErr) || len(httpErr.Body) == 0 {
		return ""
	}
	var payload struct {
		DeviceID string `json:"device_id"`
	}
	if json.Unmarshal(httpErr.Body, &payload) != nil {
		return ""
	}
	return payload.DeviceID
}
