package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nutrisolve/nutrisolve/internal/bounds"
	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/internal/store"
)

// memStore is a minimal in-memory store.Store used to exercise Pool without
// a real database backend.
type memStore struct {
	mu        sync.Mutex
	pending   [][]int
	claimed   map[string][]int
	completed [][]int
	solutions [][]int
}

func newMemStore(seed [][]int) *memStore {
	return &memStore{pending: seed, claimed: make(map[string][]int)}
}

func (m *memStore) Initialize(ctx context.Context) error { return nil }

func (m *memStore) Claim(ctx context.Context, workerID string) ([]int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) == 0 {
		return nil, false, nil
	}
	ex := m.pending[0]
	m.pending = m.pending[1:]
	m.claimed[workerID] = ex
	return ex, true, nil
}

func (m *memStore) Complete(ctx context.Context, exclusion []int, timeout bool, solutions [][]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, exclusion)
	m.solutions = append(m.solutions, solutions...)
	return nil
}

func (m *memStore) RecordSolutions(ctx context.Context, solutions [][]int) error { return nil }

func (m *memStore) TimedOutWorkers(ctx context.Context, deadline time.Time) ([]string, error) {
	return nil, nil
}

func (m *memStore) HasWork(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0, nil
}

func (m *memStore) Resume(ctx context.Context) error { return nil }

func (m *memStore) Solutions(ctx context.Context) ([][]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.solutions, nil
}

func (m *memStore) FoodsSeen(ctx context.Context) (map[int]bool, error) { return nil, nil }

func (m *memStore) ProcessStatus(ctx context.Context) ([]store.ExclusionRecord, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

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

func TestPool_SolvesSingleExclusionAndCompletes(t *testing.T) {
	cat := identityCatalog()
	qtyMax := bounds.QtyMax(cat)
	errMax := bounds.ErrMax(cat, qtyMax, 3)

	ms := newMemStore([][]int{nil})
	p := New(Config{
		Size:               2,
		Catalog:            cat,
		QtyMax:             qtyMax,
		ErrMax:             errMax,
		Cardinality:        3,
		JobTimeout:         5 * time.Second,
		StartupGrace:       200 * time.Millisecond,
		MaxSolutionsPerJob: 1000,
		Store:              ms,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Run(ctx)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.completed) != 1 {
		t.Fatalf("expected 1 completed exclusion, got %d", len(ms.completed))
	}
	if len(ms.solutions) != 1 {
		t.Fatalf("expected 1 recorded solution, got %d", len(ms.solutions))
	}
}

func TestPool_InsufficientFoodsCompletesWithNoSolutions(t *testing.T) {
	cat := identityCatalog()
	qtyMax := bounds.QtyMax(cat)
	errMax := bounds.ErrMax(cat, qtyMax, 3)

	ms := newMemStore([][]int{{3}})
	p := New(Config{
		Size:               1,
		Catalog:            cat,
		QtyMax:             qtyMax,
		ErrMax:             errMax,
		Cardinality:        3,
		JobTimeout:         5 * time.Second,
		StartupGrace:       200 * time.Millisecond,
		MaxSolutionsPerJob: 1000,
		Store:              ms,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Run(ctx)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.completed) != 1 {
		t.Fatalf("expected 1 completed exclusion, got %d", len(ms.completed))
	}
	if len(ms.solutions) != 0 {
		t.Fatalf("expected no solutions, got %d", len(ms.solutions))
	}
}

func TestPool_TerminatesWhenQueueStaysEmpty(t *testing.T) {
	ms := newMemStore(nil)
	p := New(Config{
		Size:         2,
		StartupGrace: 50 * time.Millisecond,
		Store:        ms,
	})

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not terminate on an empty queue")
	}
}
