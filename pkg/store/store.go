// Package store persists the chained credential set (device token, session
// token, fleet token and company id, bridge client identity) across process
// restarts. It is dumb storage: no freshness validation happens here. Save
// merges field-wise so a partial set never erases previously persisted
// values, and Clear always survives the bridge client identifier, which
// names the physical device rather than the user.
package store

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Credentials is the persisted token and identifier set. All fields are
// optional except BridgeClientID, which callers obtain through
// EnsureBridgeClientID before first use.
type Credentials struct {
	DeviceToken      string `json:"device_token,omitempty"`
	SessionToken     string `json:"session_token,omitempty"`
	FleetToken       string `json:"fleet_token,omitempty"`
	FleetCompanyID   string `json:"fleet_company_id,omitempty"`
	BridgeClientID   string `json:"bridge_client_id,omitempty"`
	BridgeDeviceID   string `json:"bridge_device_id,omitempty"`
	PendingAuthToken string `json:"pending_auth_token,omitempty"`
}

// Store is the single owner of the credential set.
type Store interface {
	// Load returns the last persisted credentials; absent fields are empty.
	Load() (Credentials, error)
	// Save persists every non-empty field of creds without clearing fields
	// that are unset in creds.
	Save(creds Credentials) error
	// Clear removes everything except the bridge client identifier.
	Clear() error
	// ClearPending removes only the pending authorization token.
	ClearPending() error
}

const (
	StorageKeychain = "keychain"
	StorageFile     = "file"
)

// New builds a store for the given storage mode. An empty mode selects the
// OS keychain. The path is only used by the file backend.
func New(mode, path string) (Store, error) {
	switch mode {
	case "", StorageKeychain:
		return &keyringStore{service: keyringService}, nil
	case StorageFile:
		if path == "" {
			return nil, fmt.Errorf("file storage requires a path")
		}
		return &fileStore{path: path}, nil
	default:
		return nil, fmt.Errorf("unknown storage mode: %s", mode)
	}
}

// merge overlays non-empty fields of src onto dst.
func merge(dst, src Credentials) Credentials {
	if src.DeviceToken != "" {
		dst.DeviceToken = src.DeviceToken
	}
	if src.SessionToken != "" {
		dst.SessionToken = src.SessionToken
	}
	if src.FleetToken != "" {
		dst.FleetToken = src.FleetToken
	}
	if src.FleetCompanyID != "" {
		dst.FleetCompanyID = src.FleetCompanyID
	}
	if src.BridgeClientID != "" {
		dst.BridgeClientID = src.BridgeClientID
	}
	if src.BridgeDeviceID != "" {
		dst.BridgeDeviceID = src.BridgeDeviceID
	}
	if src.PendingAuthToken != "" {
		dst.PendingAuthToken = src.PendingAuthToken
	}
	return dst
}

const (
	bridgeIDPrefix = "TBA"
	bridgeIDDigits = 13
)

var bridgeIDPattern = regexp.MustCompile(`^TBA\d{13}$`)

// NormalizeBridgeClientID coerces a stored value into the canonical
// TBA + 13 decimal digits form. A well-formed value passes through
// unchanged. A foreign value keeps only its trailing digits, left-padded
// with zeros, so an unrelated identifier format is never reused as-is.
// An empty value, or one without any digits, yields a freshly generated
// identifier.
func NormalizeBridgeClientID(raw string) string {
	if bridgeIDPattern.MatchString(raw) {
		return raw
	}
	digits := trailingDigits(raw, bridgeIDDigits)
	if digits == "" {
		return generateBridgeClientID()
	}
	return bridgeIDPrefix + strings.Repeat("0", bridgeIDDigits-len(digits)) + digits
}

func trailingDigits(s string, max int) string {
	var out []byte
	for i := len(s) - 1; i >= 0 && len(out) < max; i-- {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		out = append([]byte{c}, out...)
	}
	return string(out)
}

func generateBridgeClientID() string {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(bridgeIDDigits), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; an all-zero identifier is still well-formed.
		n = big.NewInt(0)
	}
	return fmt.Sprintf("%s%0*d", bridgeIDPrefix, bridgeIDDigits, n)
}

// EnsureBridgeClientID loads the persisted identifier, normalizes it, and
// persists the result if it changed. The identifier is created once and
// never rotated afterwards.
func EnsureBridgeClientID(s Store) (string, error) {
	creds, err := s.Load()
	if err != nil {
		return "", err
	}
	id := NormalizeBridgeClientID(creds.BridgeClientID)
	if id != creds.BridgeClientID {
		if err := s.Save(Credentials{BridgeClientID: id}); err != nil {
			return "", err
		}
	}
	return id, nil
}
