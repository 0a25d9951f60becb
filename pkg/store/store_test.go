package store

import (
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wellFormed = regexp.MustCompile(`^TBA\d{13}$`)

func newFileStore(t *testing.T) Store {
	t.Helper()
	s, err := New(StorageFile, filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	return s
}

func TestNormalizeBridgeClientID(t *testing.T) {
	t.Run("well-formed passes through", func(t *testing.T) {
		assert.Equal(t, "TBA1234567890123", NormalizeBridgeClientID("TBA1234567890123"))
	})

	t.Run("empty generates a fresh identifier", func(t *testing.T) {
		id := NormalizeBridgeClientID("")
		assert.Regexp(t, wellFormed, id)
	})

	t.Run("garbage without digits generates a fresh identifier", func(t *testing.T) {
		id := NormalizeBridgeClientID("garbage")
		assert.Regexp(t, wellFormed, id)
	})

	t.Run("foreign value keeps trailing digits zero-padded", func(t *testing.T) {
		assert.Equal(t, "TBA0000000004567", NormalizeBridgeClientID("ABC-4567"))
		assert.Equal(t, "TBA0000000000042", NormalizeBridgeClientID("device42"))
	})

	t.Run("overlong digit run keeps the trailing thirteen", func(t *testing.T) {
		id := NormalizeBridgeClientID("X12345678901234567")
		assert.Regexp(t, wellFormed, id)
		assert.Equal(t, "TBA5678901234567", id)
	})
}

func TestFileStoreLoadEmpty(t *testing.T) {
	s := newFileStore(t)
	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, creds)
}

func TestFileStoreSaveMerges(t *testing.T) {
	s := newFileStore(t)

	require.NoError(t, s.Save(Credentials{FleetToken: "fleet-1", FleetCompanyID: "77"}))
	// A save carrying only a session token must not erase the fleet pair.
	require.NoError(t, s.Save(Credentials{SessionToken: "sess-1"}))

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "sess-1", creds.SessionToken)
	assert.Equal(t, "fleet-1", creds.FleetToken)
	assert.Equal(t, "77", creds.FleetCompanyID)
}

func TestFileStoreClearKeepsBridgeClientID(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.Save(Credentials{
		DeviceToken:      "dev",
		SessionToken:     "sess",
		FleetToken:       "fleet",
		FleetCompanyID:   "77",
		BridgeClientID:   "TBA1234567890123",
		BridgeDeviceID:   "bd-1",
		PendingAuthToken: "pending",
	}))

	require.NoError(t, s.Clear())

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "TBA1234567890123", creds.BridgeClientID)
	assert.Empty(t, creds.DeviceToken)
	assert.Empty(t, creds.SessionToken)
	assert.Empty(t, creds.FleetToken)
	assert.Empty(t, creds.FleetCompanyID)
	assert.Empty(t, creds.BridgeDeviceID)
	assert.Empty(t, creds.PendingAuthToken)
}

func TestFileStoreClearPending(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.Save(Credentials{SessionToken: "sess", PendingAuthToken: "pending"}))

	require.NoError(t, s.ClearPending())

	creds, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.PendingAuthToken)
	assert.Equal(t, "sess", creds.SessionToken)
}

func TestEnsureBridgeClientID(t *testing.T) {
	s := newFileStore(t)

	id, err := EnsureBridgeClientID(s)
	require.NoError(t, err)
	assert.Regexp(t, wellFormed, id)

	// Stable across calls once persisted.
	again, err := EnsureBridgeClientID(s)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// A foreign persisted value is normalized, not reused verbatim.
	require.NoError(t, s.Save(Credentials{BridgeClientID: "legacy-99"}))
	normalized, err := EnsureBridgeClientID(s)
	require.NoError(t, err)
	assert.Equal(t, "TBA0000000000099", normalized)
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New("vault", "")
	require.Error(t, err)

	_, err = New(StorageFile, "")
	require.Error(t, err)
}
