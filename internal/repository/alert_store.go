package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

// FSAlertStore appends alerts as one JSON file per alert under a
// directory, named by fire time and alert ID so a plain ls sorts
// chronologically.
type FSAlertStore struct {
	dir string
	mu  sync.Mutex
}

func NewFSAlertStore(dir string) (*FSAlertStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("alert store dir: %w", err)
	}
	return &FSAlertStore{dir: dir}, nil
}

func (s *FSAlertStore) Append(a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json", a.Timestamp.UTC().Format("20060102T150405"), a.ID)
	if err := writeAtomic(filepath.Join(s.dir, name), data); err != nil {
		return fmt.Errorf("write alert: %w", err)
	}
	return nil
}

var _ domrepo.AlertStore = (*FSAlertStore)(nil)
