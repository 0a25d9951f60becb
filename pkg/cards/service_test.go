package cards

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetware/cardbridge/pkg/chain"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/hub"
	"github.com/fleetware/cardbridge/pkg/store"
)

type fakeDirectory struct {
	server      *httptest.Server
	createCalls int32
	updateCalls int32
	deleteCalls int32
	createCode  int32
	lastDeleted atomic.Value
}

func newFakeDirectory(t *testing.T) *fakeDirectory {
	t.Helper()
	f := &fakeDirectory{createCode: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const base = "/v1/companies/77/tachograph-cards"
		switch {
		case r.Method == http.MethodPost && r.URL.Path == base:
			atomic.AddInt32(&f.createCalls, 1)
			if code := atomic.LoadInt32(&f.createCode); code != http.StatusOK {
				w.WriteHeader(int(code))
				return
			}
			var card fleet.Card
			require.NoError(t, json.NewDecoder(r.Body).Decode(&card))
			card.ID = "remote-1"
			_ = json.NewEncoder(w).Encode(card)
		case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, base+"/"):
			atomic.AddInt32(&f.updateCalls, 1)
			var card fleet.Card
			require.NoError(t, json.NewDecoder(r.Body).Decode(&card))
			_ = json.NewEncoder(w).Encode(card)
		case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, base+"/"):
			atomic.AddInt32(&f.deleteCalls, 1)
			f.lastDeleted.Store(strings.TrimPrefix(r.URL.Path, base+"/"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newService(t *testing.T, f *fakeDirectory) (*Service, *Registry) {
	t.Helper()
	registry, err := NewRegistry(filepath.Join(t.TempDir(), "cards.yaml"))
	require.NoError(t, err)

	st, err := store.New(store.StorageFile, filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	require.NoError(t, st.Save(store.Credentials{FleetToken: "fleet-token", FleetCompanyID: "77"}))

	fleetClient, err := fleet.New(fleet.WithServer(f.server.URL))
	require.NoError(t, err)
	hubClient, err := hub.New(hub.WithServer("https://hub.invalid"))
	require.NoError(t, err)
	manager := chain.NewManager(hubClient, st, zap.NewNop().Sugar())

	return NewService(registry, fleetClient, manager, zap.NewNop().Sugar()), registry
}

func TestServiceAddPushesAndLinks(t *testing.T) {
	f := newFakeDirectory(t)
	svc, registry := newService(t, f)

	card, err := svc.Add(context.Background(), Card{Number: "C100", Name: "driver"})
	require.NoError(t, err)
	assert.Equal(t, "remote-1", card.RemoteID)

	stored, ok, err := registry.Get("C100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "remote-1", stored.RemoteID)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.createCalls))
}

func TestServiceAddKeepsLocalOnRemoteFailure(t *testing.T) {
	f := newFakeDirectory(t)
	atomic.StoreInt32(&f.createCode, http.StatusInternalServerError)
	svc, registry := newService(t, f)

	_, err := svc.Add(context.Background(), Card{Number: "C100"})
	require.NoError(t, err)

	stored, ok, err := registry.Get("C100")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, stored.RemoteID)
}

func TestServiceAddToleratesConflict(t *testing.T) {
	f := newFakeDirectory(t)
	atomic.StoreInt32(&f.createCode, http.StatusConflict)
	svc, registry := newService(t, f)

	_, err := svc.Add(context.Background(), Card{Number: "C100"})
	require.NoError(t, err)

	_, ok, err := registry.Get("C100")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceRename(t *testing.T) {
	f := newFakeDirectory(t)
	svc, registry := newService(t, f)
	require.NoError(t, registry.Upsert(Card{Number: "C100", Name: "old", RemoteID: "remote-1"}))

	card, err := svc.Rename(context.Background(), "C100", "new")
	require.NoError(t, err)
	assert.Equal(t, "new", card.Name)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.updateCalls))

	_, err = svc.Rename(context.Background(), "missing", "x")
	assert.ErrorContains(t, err, "not in the local registry")
}

func TestServiceRenameUnlinkedStaysLocal(t *testing.T) {
	f := newFakeDirectory(t)
	svc, registry := newService(t, f)
	require.NoError(t, registry.Upsert(Card{Number: "C100", Name: "old"}))

	_, err := svc.Rename(context.Background(), "C100", "new")
	require.NoError(t, err)
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.updateCalls))
}

func TestServiceRemove(t *testing.T) {
	f := newFakeDirectory(t)
	svc, registry := newService(t, f)
	require.NoError(t, registry.Upsert(Card{Number: "C100", RemoteID: "remote-9"}))

	require.NoError(t, svc.Remove(context.Background(), "C100"))

	_, ok, err := registry.Get("C100")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.deleteCalls))
	assert.Equal(t, "remote-9", f.lastDeleted.Load())

	// Removing an unlinked or unknown card never touches the directory.
	require.NoError(t, svc.Remove(context.Background(), "unknown"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.deleteCalls))
}
