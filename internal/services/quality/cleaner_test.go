package quality

import (
	"testing"
)

func TestCleanFillsMissingPrices(t *testing.T) {
	obs := seriesOf(100, 0, 0, 103, 104, 105, 106, 107, 108, 109, 110, 111)
	cleaned, st := NewCleaner().Clean(obs)

	if st.Filled != 2 {
		t.Fatalf("filled = %d, want 2", st.Filled)
	}
	if cleaned[1].SellPrice != 100 || cleaned[2].SellPrice != 100 {
		t.Fatalf("forward fill failed: %v, %v", cleaned[1].SellPrice, cleaned[2].SellPrice)
	}
	// input untouched
	if obs[1].SellPrice != 0 {
		t.Fatal("input series was mutated")
	}
}

func TestCleanBackwardFillsLeadingGap(t *testing.T) {
	obs := seriesOf(0, 0, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111)
	cleaned, st := NewCleaner().Clean(obs)

	if st.Filled != 2 {
		t.Fatalf("filled = %d, want 2", st.Filled)
	}
	if cleaned[0].SellPrice != 102 || cleaned[1].SellPrice != 102 {
		t.Fatalf("backward fill failed: %v, %v", cleaned[0].SellPrice, cleaned[1].SellPrice)
	}
}

func TestCleanRemovesOutliers(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i%5)
	}
	prices[12] = 5000

	cleaned, st := NewCleaner().Clean(seriesOf(prices...))
	if st.OutliersRemoved != 1 {
		t.Fatalf("outliers removed = %d, want 1", st.OutliersRemoved)
	}
	if len(cleaned) != 29 {
		t.Fatalf("output length = %d, want 29", len(cleaned))
	}
	for _, o := range cleaned {
		if o.SellPrice == 5000 {
			t.Fatal("spike survived cleaning")
		}
	}
}

func TestCleanCapsRepeatedPrices(t *testing.T) {
	prices := make([]float64, 40)
	for i := range prices {
		prices[i] = 100
	}
	prices[0] = 99
	prices[39] = 101

	cleaned, st := NewCleaner().Clean(seriesOf(prices...))
	// 38 identical prices in a row, the cap keeps the first 10
	if st.DuplicatesCut != 28 {
		t.Fatalf("duplicates cut = %d, want 28", st.DuplicatesCut)
	}
	if st.Output != len(cleaned) {
		t.Fatalf("stats output %d disagrees with result length %d", st.Output, len(cleaned))
	}
	if cleaned[len(cleaned)-1].SellPrice != 101 {
		t.Fatal("tail observation after the run was dropped")
	}
}

func TestCleanEmptySeries(t *testing.T) {
	cleaned, st := NewCleaner().Clean(nil)
	if cleaned != nil || st.Output != 0 {
		t.Fatalf("empty input gave %v observations", len(cleaned))
	}
}

func TestCleanKeepsOrdering(t *testing.T) {
	obs := seriesOf(100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111)
	cleaned, _ := NewCleaner().Clean(obs)
	for i := 1; i < len(cleaned); i++ {
		if cleaned[i].Timestamp.Before(cleaned[i-1].Timestamp) {
			t.Fatal("cleaned series lost timestamp ordering")
		}
	}
	if len(cleaned) < MinCleanPoints {
		t.Fatalf("clean series shrank below the training minimum: %d", len(cleaned))
	}
}
