package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileStore keeps the credential set in a single JSON file. It backs
// headless installs where no OS keychain is available.
type fileStore struct {
	mu   sync.Mutex
	path string
}

func (f *fileStore) Load() (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

func (f *fileStore) read() (Credentials, error) {
	content, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, err
	}
	var creds Credentials
	if err := json.Unmarshal(content, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credential file: %w", err)
	}
	return creds, nil
}

func (f *fileStore) write(creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}
	content, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	return os.WriteFile(f.path, content, 0o600)
}

func (f *fileStore) Save(creds Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, err := f.read()
	if err != nil {
		return err
	}
	return f.write(merge(existing, creds))
}

func (f *fileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, err := f.read()
	if err != nil {
		return err
	}
	return f.write(Credentials{BridgeClientID: existing.BridgeClientID})
}

func (f *fileStore) ClearPending() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, err := f.read()
	if err != nil {
		return err
	}
	existing.PendingAuthToken = ""
	return f.write(existing)
}
