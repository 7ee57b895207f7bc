package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nutrisolve/nutrisolve/internal/store"
)

type fakeRecord struct {
	exclusion []int
	claimedBy string
	startTime time.Time
}

type memStore struct {
	mu        sync.Mutex
	inProg    []fakeRecord
	completed [][]int
	timeouts  [][]int
}

func (m *memStore) Initialize(ctx context.Context) error                             { return nil }
func (m *memStore) Claim(ctx context.Context, workerID string) ([]int, bool, error)   { return nil, false, nil }
func (m *memStore) RecordSolutions(ctx context.Context, solutions [][]int) error      { return nil }
func (m *memStore) HasWork(ctx context.Context) (bool, error)                         { return false, nil }
func (m *memStore) Resume(ctx context.Context) error                                  { return nil }
func (m *memStore) Solutions(ctx context.Context) ([][]int, error)                    { return nil, nil }
func (m *memStore) FoodsSeen(ctx context.Context) (map[int]bool, error)               { return nil, nil }
func (m *memStore) Close() error                                                      { return nil }

func (m *memStore) Complete(ctx context.Context, exclusion []int, timeout bool, solutions [][]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, exclusion)
	if timeout {
		m.timeouts = append(m.timeouts, exclusion)
	}
	kept := m.inProg[:0]
	for _, r := range m.inProg {
		if !equalIDs(r.exclusion, exclusion) {
			kept = append(kept, r)
		}
	}
	m.inProg = kept
	return nil
}

func (m *memStore) TimedOutWorkers(ctx context.Context, deadline time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.inProg {
		if r.startTime.Before(deadline) {
			out = append(out, r.claimedBy)
		}
	}
	return out, nil
}

func (m *memStore) ProcessStatus(ctx context.Context) ([]store.ExclusionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.ExclusionRecord, len(m.inProg))
	for i, r := range m.inProg {
		st := r.startTime
		out[i] = store.ExclusionRecord{Exclusion: r.exclusion, ClaimedBy: r.claimedBy, StartTime: &st}
	}
	return out, nil
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSupervisor_ReclaimsStaleInProgressRow(t *testing.T) {
	ms := &memStore{
		inProg: []fakeRecord{
			{exclusion: []int{1, 2}, claimedBy: "worker-1", startTime: time.Now().Add(-time.Hour)},
		},
	}
	s := New(Config{Store: ms, Deadline: time.Minute, CheckInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.timeouts) == 0 {
		t.Fatalf("expected the stale row to be reclaimed as timed out")
	}
}

func TestSupervisor_LeavesFreshInProgressRowAlone(t *testing.T) {
	ms := &memStore{
		inProg: []fakeRecord{
			{exclusion: []int{1}, claimedBy: "worker-1", startTime: time.Now()},
		},
	}
	s := New(Config{Store: ms, Deadline: time.Minute, CheckInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if len(ms.completed) != 0 {
		t.Fatalf("expected no reclaim for a fresh in-progress row, got %d", len(ms.completed))
	}
}
