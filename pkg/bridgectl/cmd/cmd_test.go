package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/cardbridge/pkg/config"
	"github.com/fleetware/cardbridge/pkg/fleet"
	"github.com/fleetware/cardbridge/pkg/store"
)

type cliFixture struct {
	buf        *bytes.Buffer
	configPath string
	credPath   string
	regPath    string
}

func newCLIFixture(t *testing.T, hubServer, fleetServer string) *cliFixture {
	t.Helper()
	dir := t.TempDir()
	f := &cliFixture{
		buf:        &bytes.Buffer{},
		configPath: filepath.Join(dir, "config.yaml"),
		credPath:   filepath.Join(dir, "credentials.json"),
		regPath:    filepath.Join(dir, "cards.yaml"),
	}
	cfg := config.DefaultConfig()
	if hubServer != "" {
		cfg.Hub.Server = hubServer
	}
	if fleetServer != "" {
		cfg.Fleet.Server = fleetServer
	}
	cfg.Settings.TokenStorage = "file"
	require.NoError(t, config.Save(f.configPath, &cfg))
	return f
}

func (f *cliFixture) execute(t *testing.T, args ...string) error {
	t.Helper()
	f.buf.Reset()
	root := NewRootCommand(Config{ConfigPath: f.configPath, OutputWriter: f.buf})
	root.SetArgs(append(args,
		"--credential-file", f.credPath,
		"--registry", f.regPath,
	))
	return root.Execute()
}

func (f *cliFixture) seedCredentials(t *testing.T, creds store.Credentials) {
	t.Helper()
	st, err := store.New(store.StorageFile, f.credPath)
	require.NoError(t, err)
	require.NoError(t, st.Save(creds))
}

func TestVersionCommand(t *testing.T) {
	f := newCLIFixture(t, "", "")
	require.NoError(t, f.execute(t, "version"))
	assert.Contains(t, f.buf.String(), "bridgectl")

	require.NoError(t, f.execute(t, "version", "-o", "json"))
	assert.Contains(t, f.buf.String(), `"goVersion"`)
}

func TestCompletionCommand(t *testing.T) {
	f := newCLIFixture(t, "", "")
	require.NoError(t, f.execute(t, "completion", "bash"))
	assert.NotEmpty(t, f.buf.String())

	err := f.execute(t, "completion", "tcsh")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported shell")
}

func TestConfigInitAndView(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	buf := &bytes.Buffer{}

	root := NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "init", "--hub-server", "https://hub.example.com", "--fleet-server", "https://fleet.example.com"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Initialized config")

	// A second init without --force refuses to overwrite.
	root = NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "init", "--hub-server", "https://other.example.com"})
	require.Error(t, root.Execute())

	buf.Reset()
	root = NewRootCommand(Config{ConfigPath: path, OutputWriter: buf})
	root.SetArgs([]string{"config", "view"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "hub.example.com")
}

func TestAuthStatusSignedOut(t *testing.T) {
	f := newCLIFixture(t, "", "")
	require.NoError(t, f.execute(t, "auth", "status", "-o", "json"))

	var status map[string]any
	require.NoError(t, json.Unmarshal(f.buf.Bytes(), &status))
	assert.Equal(t, false, status["authenticated"])
}

func TestAuthLogoutKeepsBridgeClientID(t *testing.T) {
	f := newCLIFixture(t, "", "")
	f.seedCredentials(t, store.Credentials{
		DeviceToken:    "device-token",
		BridgeClientID: "TBA1234567890123",
	})

	require.NoError(t, f.execute(t, "auth", "logout"))
	assert.Contains(t, f.buf.String(), "Signed out")

	st, err := store.New(store.StorageFile, f.credPath)
	require.NoError(t, err)
	creds, err := st.Load()
	require.NoError(t, err)
	assert.Empty(t, creds.DeviceToken)
	assert.Equal(t, "TBA1234567890123", creds.BridgeClientID)
}

func TestCardsAddAndList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tachograph-cards") {
			var card fleet.Card
			_ = json.NewDecoder(r.Body).Decode(&card)
			card.ID = "remote-1"
			_ = json.NewEncoder(w).Encode(card)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newCLIFixture(t, "", server.URL)
	f.seedCredentials(t, store.Credentials{FleetToken: "fleet-token", FleetCompanyID: "77"})

	require.NoError(t, f.execute(t, "cards", "add", "C100", "--name", "depot card"))
	assert.Contains(t, f.buf.String(), "Card C100 added")

	require.NoError(t, f.execute(t, "cards", "list"))
	assert.Contains(t, f.buf.String(), "C100")
	assert.Contains(t, f.buf.String(), "depot card")

	require.NoError(t, f.execute(t, "cards", "list", "-o", "json"))
	assert.Contains(t, f.buf.String(), `"remote-1"`)
}

func TestCardsSync(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/tachograph-cards") {
			_ = json.NewEncoder(w).Encode([]fleet.Card{{ID: "r1", CardNumber: "C200", Name: "remote card"}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newCLIFixture(t, "", server.URL)
	f.seedCredentials(t, store.Credentials{FleetToken: "fleet-token", FleetCompanyID: "77"})

	require.NoError(t, f.execute(t, "cards", "sync"))
	assert.Contains(t, f.buf.String(), "1 imported, 0 updated")

	require.NoError(t, f.execute(t, "cards", "list"))
	assert.Contains(t, f.buf.String(), "C200")
}

func TestRegisterCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/tachograph-company-card-clients") {
			_ = json.NewEncoder(w).Encode(map[string]string{"device_id": "bd-1"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := newCLIFixture(t, "", server.URL)
	f.seedCredentials(t, store.Credentials{FleetToken: "fleet-token", FleetCompanyID: "77"})

	require.NoError(t, f.execute(t, "register"))
	assert.Contains(t, f.buf.String(), "bd-1")

	st, err := store.New(store.StorageFile, f.credPath)
	require.NoError(t, err)
	creds, err := st.Load()
	require.NoError(t, err)
	assert.Regexp(t, `^TBA\d{13}$`, creds.BridgeClientID)
	assert.Equal(t, "bd-1", creds.BridgeDeviceID)
}

func TestRootRejectsUnknownOutputFormat(t *testing.T) {
	f := newCLIFixture(t, "", "")
	err := f.execute(t, "auth", "status", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}
