// Package cards owns the locally persisted registry of company card
// records, keyed by the 16-character card number. The registry is the
// upsert/remove persistence primitive the rest of the system builds on:
// reconciliation computes merge plans over snapshots of it but never writes
// through any other path.
package cards

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"
)

// Card is a locally known company card. ICCID is observed from a physical
// reader; RemoteID ties the record to the fleet directory object when one
// exists.
type Card struct {
	Number string `yaml:"number"`
	Name   string `yaml:"name,omitempty"`
	ICCID  string `yaml:"iccid,omitempty"`
	// Expiry is read off the card chip; the directory never carries it.
	Expiry   string `yaml:"expire,omitempty"`
	RemoteID string `yaml:"remote_id,omitempty"`
}

type registryFile struct {
	Cards map[string]Card `yaml:"cards"`
}

// Registry is a YAML-file-backed card store.
type Registry struct {
	mu   sync.Mutex
	path string
}

func NewRegistry(path string) (*Registry, error) {
	if path == "" {
		return nil, errors.New("registry path is required")
	}
	return &Registry{path: path}, nil
}

func (r *Registry) load() (map[string]Card, error) {
	content, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Card{}, nil
		}
		return nil, err
	}
	var file registryFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse card registry: %w", err)
	}
	if file.Cards == nil {
		file.Cards = map[string]Card{}
	}
	return file.Cards, nil
}

func (r *Registry) save(cards map[string]Card) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}
	content, err := yaml.Marshal(registryFile{Cards: cards})
	if err != nil {
		return fmt.Errorf("failed to marshal card registry: %w", err)
	}
	return os.WriteFile(r.path, content, 0o600)
}

// List returns a snapshot of all known cards keyed by card number.
func (r *Registry) List() (map[string]Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns a single card by number.
func (r *Registry) Get(number string) (Card, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cards, err := r.load()
	if err != nil {
		return Card{}, false, err
	}
	card, ok := cards[number]
	return card, ok, nil
}

// Upsert inserts or replaces the record for card.Number.
func (r *Registry) Upsert(card Card) error {
	number := strings.TrimSpace(card.Number)
	if number == "" {
		return errors.New("card number is required")
	}
	card.Number = number

	r.mu.Lock()
	defer r.mu.Unlock()
	cards, err := r.load()
	if err != nil {
		return err
	}
	cards[number] = card
	return r.save(cards)
}

// Remove deletes the record. Removing an unknown number is a no-op.
func (r *Registry) Remove(number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cards, err := r.load()
	if err != nil {
		return err
	}
	delete(cards, number)
	return r.save(cards)
}
