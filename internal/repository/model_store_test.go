package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"PriceCast/internal/domain/models"
)

func testRecord(itemID int64) *models.ModelRecord {
	return &models.ModelRecord{
		ItemID: itemID,
		SubmodelStates: map[string]json.RawMessage{
			"linear": json.RawMessage(`{"slope":1.5,"intercept":100}`),
		},
		Weights:             map[string]float64{"linear": 1},
		LastPrice:           123.45,
		LastObservationTime: time.Now().UTC().Truncate(time.Second),
		TrainSize:           48,
		Version:             models.ModelVersion,
		Metrics: models.ModelMetrics{
			TrainingCount:    3,
			TrainingStrategy: models.StrategyFull,
		},
	}
}

func TestModelStoreRoundTrip(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	want := testRecord(42)
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(42)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil {
		t.Fatal("load returned nil for saved record")
	}
	if got.ItemID != want.ItemID || got.LastPrice != want.LastPrice || got.TrainSize != want.TrainSize {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if got.Metrics.TrainingCount != 3 || got.Metrics.TrainingStrategy != models.StrategyFull {
		t.Fatalf("metrics = %+v", got.Metrics)
	}
	if string(got.SubmodelStates["linear"]) != string(want.SubmodelStates["linear"]) {
		t.Fatalf("states = %s", got.SubmodelStates["linear"])
	}
}

func TestModelStoreLoadMissing(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	got, err := store.Load(7)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if got != nil {
		t.Fatalf("load missing = %+v, want nil", got)
	}
}

func TestModelStoreCorruptRecordDiscarded(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSModelStore(dir, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model_9.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	got, err := store.Load(9)
	if err != nil {
		t.Fatalf("load corrupt: %v", err)
	}
	if got != nil {
		t.Fatal("corrupt record must read as missing")
	}
}

func TestModelStoreDeleteAndList(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		if err := store.Save(testRecord(id)); err != nil {
			t.Fatalf("save %d: %v", id, err)
		}
	}
	// metrics snapshots must not show up in the listing
	if err := store.SaveMetrics(testRecord(1)); err != nil {
		t.Fatalf("save metrics: %v", err)
	}

	if err := store.Delete(2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(2); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}

	ids, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	if len(ids) != 2 || !seen[1] || !seen[3] {
		t.Fatalf("list = %v, want [1 3]", ids)
	}
}

func TestModelStoreOverwriteKeepsLatest(t *testing.T) {
	store, err := NewFSModelStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	first := testRecord(5)
	first.LastPrice = 100
	if err := store.Save(first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	second := testRecord(5)
	second.LastPrice = 200
	if err := store.Save(second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	got, err := store.Load(5)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.LastPrice != 200 {
		t.Fatalf("last price = %v, want 200", got.LastPrice)
	}
}
