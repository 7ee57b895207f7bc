package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/internal/store"
)

func identityCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Bands: []catalog.NutrientBand{
			{Name: "n1", Min: 1, Max: 10},
			{Name: "n2", Min: 1, Max: 10},
			{Name: "n3", Min: 1, Max: 10},
		},
		Foods: []catalog.Food{
			{ID: 1, Label: "A", Coeffs: []int{1, 0, 0}},
			{ID: 2, Label: "B", Coeffs: []int{0, 1, 0}},
			{ID: 3, Label: "C", Coeffs: []int{0, 0, 1}},
		},
	}
}

func TestRun_RejectsOutOfRangeCardinality(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	_, err = Run(context.Background(), Options{Catalog: identityCatalog(), Cardinality: 4, Store: s})
	if err == nil {
		t.Fatalf("expected an error for a cardinality exceeding the catalog size")
	}
}

func TestRun_IdentityScenarioProducesOneSolutionAndDrainsQueue(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := Run(ctx, Options{
		Catalog:      identityCatalog(),
		Cardinality:  3,
		Workers:      2,
		JobTimeout:   10 * time.Second,
		StartupGrace: 200 * time.Millisecond,
		MaxSolutions: 1000,
		Store:        s,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Solutions) != 1 {
		t.Fatalf("expected exactly one FoodSet, got %d: %v", len(result.Solutions), result.Solutions)
	}
	if result.FoodsSeen != 3 {
		t.Fatalf("expected 3 foods seen, got %d", result.FoodsSeen)
	}

	has, err := s.HasWork(ctx)
	if err != nil {
		t.Fatalf("HasWork failed: %v", err)
	}
	if has {
		t.Fatalf("expected the queue to be fully drained")
	}
}
