package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

const (
	modelFilePattern   = "model_%d.json"
	metricsFilePattern = "metrics_%d.json"
)

// FSModelStore persists model records as one JSON blob per item.
// Writes go through a temp file and rename, so a crash mid-write
// never corrupts the previous record.
type FSModelStore struct {
	dir string
	l   *applogger.Logger

	mu sync.Mutex
}

func NewFSModelStore(dir string, l *applogger.Logger) (*FSModelStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("model store dir: %w", err)
	}
	return &FSModelStore{dir: dir, l: l}, nil
}

func (s *FSModelStore) Save(r *models.ModelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal model record: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf(modelFilePattern, r.ItemID))
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write model record: %w", err)
	}
	if s.l != nil {
		s.l.Debug("model record saved",
			applogger.Int64("item_id", r.ItemID),
			applogger.Int("bytes", len(data)),
		)
	}
	return nil
}

// Load returns the stored record, or (nil, nil) when none exists.
func (s *FSModelStore) Load(itemID int64) (*models.ModelRecord, error) {
	path := filepath.Join(s.dir, fmt.Sprintf(modelFilePattern, itemID))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read model record: %w", err)
	}
	var r models.ModelRecord
	if err := json.Unmarshal(data, &r); err != nil {
		if s.l != nil {
			s.l.Warn("corrupt model record, discarding",
				applogger.Int64("item_id", itemID),
				applogger.Error(err),
			)
		}
		return nil, nil
	}
	return &r, nil
}

func (s *FSModelStore) Delete(itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, fmt.Sprintf(modelFilePattern, itemID))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete model record: %w", err)
	}
	return nil
}

// SaveMetrics writes a small metrics snapshot next to the record for
// dashboards that poll the directory. Failures here are advisory.
func (s *FSModelStore) SaveMetrics(r *models.ModelRecord) error {
	snapshot := struct {
		ItemID    int64               `json:"item_id"`
		Timestamp time.Time           `json:"timestamp"`
		Metrics   models.ModelMetrics `json:"metrics"`
		Weights   map[string]float64  `json:"weights"`
	}{
		ItemID:    r.ItemID,
		Timestamp: time.Now().UTC(),
		Metrics:   r.Metrics,
		Weights:   r.Weights,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal metrics snapshot: %w", err)
	}
	path := filepath.Join(s.dir, fmt.Sprintf(metricsFilePattern, r.ItemID))
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write metrics snapshot: %w", err)
	}
	return nil
}

// List returns the item IDs with a persisted record.
func (s *FSModelStore) List() ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read model store dir: %w", err)
	}
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "model_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "model_"), ".json"), 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

var _ domrepo.ModelStore = (*FSModelStore)(nil)
