package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/sol1corejz/voidshop/internal/models"
)

const storeVersion = 1

// Store holds durable user preferences and the local checkout order
// ledger. Distinct from the TTL cache: entries here never expire, and the
// file carries an explicit version for future migrations.
type Store struct {
	mu   sync.Mutex
	path string
	data storedState
}

type storedState struct {
	Version int                 `json:"version"`
	Theme   string              `json:"theme,omitempty"`
	City    string              `json:"city,omitempty"`
	Orders  []models.LocalOrder `json:"orders,omitempty"`
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &Store{
		path: filepath.Join(dir, "voidshop_prefs.json"),
		data: storedState{Version: storeVersion},
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var loaded storedState
	if err := json.Unmarshal(raw, &loaded); err != nil || loaded.Version != storeVersion {
		// Unreadable or foreign version: start fresh rather than guess.
		return s, nil
	}
	s.data = loaded
	return s, nil
}

func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Theme
}

func (s *Store) SetTheme(theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Theme = theme
	return s.flush()
}

func (s *Store) City() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.City
}

func (s *Store) SetCity(city string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.City = city
	return s.flush()
}

func (s *Store) Orders() []models.LocalOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LocalOrder, len(s.data.Orders))
	copy(out, s.data.Orders)
	return out
}

func (s *Store) AppendOrder(order models.LocalOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Orders = append(s.data.Orders, order)
	return s.flush()
}

// ReplaceOrders reconciles the display ledger with backend data: the old
// local set is discarded wholesale, never merged.
func (s *Store) ReplaceOrders(orders []models.LocalOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Orders = append([]models.LocalOrder(nil), orders...)
	return s.flush()
}

func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}
