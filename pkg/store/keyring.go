package store

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "cardbridge"

const (
	keyDeviceToken      = "device-token"
	keySessionToken     = "session-token"
	keyFleetToken       = "fleet-token"
	keyFleetCompanyID   = "fleet-company-id"
	keyBridgeClientID   = "bridge-client-id"
	keyBridgeDeviceID   = "bridge-device-id"
	keyPendingAuthToken = "pending-auth-token"
)

// keyringStore keeps each credential field as its own secret in the OS
// keychain, so a partial save touches only the keys it carries.
type keyringStore struct {
	service string
}

func (k *keyringStore) get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("keychain read %s: %w", key, err)
	}
	return value, nil
}

func (k *keyringStore) set(key, value string) error {
	if value == "" {
		return nil
	}
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keychain write %s: %w", key, err)
	}
	return nil
}

func (k *keyringStore) delete(key string) error {
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}

func (k *keyringStore) Load() (Credentials, error) {
	var creds Credentials
	var err error
	if creds.DeviceToken, err = k.get(keyDeviceToken); err != nil {
		return Credentials{}, err
	}
	if creds.SessionToken, err = k.get(keySessionToken); err != nil {
		return Credentials{}, err
	}
	if creds.FleetToken, err = k.get(keyFleetToken); err != nil {
		return Credentials{}, err
	}
	if creds.FleetCompanyID, err = k.get(keyFleetCompanyID); err != nil {
		return Credentials{}, err
	}
	if creds.BridgeClientID, err = k.get(keyBridgeClientID); err != nil {
		return Credentials{}, err
	}
	if creds.BridgeDeviceID, err = k.get(keyBridgeDeviceID); err != nil {
		return Credentials{}, err
	}
	if creds.PendingAuthToken, err = k.get(keyPendingAuthToken); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (k *keyringStore) Save(creds Credentials) error {
	pairs := []struct {
		key   string
		value string
	}{
		{keyDeviceToken, creds.DeviceToken},
		{keySessionToken, creds.SessionToken},
		{keyFleetToken, creds.FleetToken},
		{keyFleetCompanyID, creds.FleetCompanyID},
		{keyBridgeClientID, creds.BridgeClientID},
		{keyBridgeDeviceID, creds.BridgeDeviceID},
		{keyPendingAuthToken, creds.PendingAuthToken},
	}
	for _, p := range pairs {
		if err := k.set(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

func (k *keyringStore) Clear() error {
	for _, key := range []string{
		keyDeviceToken,
		keySessionToken,
		keyFleetToken,
		keyFleetCompanyID,
		keyBridgeDeviceID,
		keyPendingAuthToken,
	} {
		if err := k.delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (k *keyringStore) ClearPending() error {
	return k.delete(keyPendingAuthToken)
}
