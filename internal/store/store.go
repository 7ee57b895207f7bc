// Package store owns the durable Work Queue and Solutions tables: the only
// component permitted to mutate them. Workers interact exclusively through
// the Store interface; concurrent writers serialize via a transactional
// primitive specific to each backend (an in-process mutex for the embedded
// SQLite backend, a Postgres advisory lock for the networked backend).
package store

import (
	"context"
	"embed"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// ExclusionRecord is a row in the work queue: one attempted Exclusion and its
// lifecycle state, per the pending/in_progress/completed/timed_out state
// machine.
type ExclusionRecord struct {
	Exclusion []int
	ClaimedBy string
	StartTime *time.Time
	EndTime   *time.Time
	Duration  time.Duration
	Timeout   bool
}

// Status derives the record's lifecycle state from its fields rather than
// storing it redundantly.
func (r ExclusionRecord) Status() string {
	switch {
	case r.StartTime == nil:
		return "pending"
	case r.EndTime == nil:
		return "in_progress"
	case r.Timeout:
		return "timed_out"
	default:
		return "completed"
	}
}

// Store is the abstract, storage-agnostic work-queue contract every backend
// must satisfy.
type Store interface {
	// Initialize seeds the empty exclusion as pending. The Solutions and
	// Queue tables themselves are created by the schema migrations run when
	// the store is opened. Idempotent, so a resumed run may call it safely.
	Initialize(ctx context.Context) error

	// Claim atomically selects any pending ExclusionRecord, marks it
	// in_progress under workerID, and returns its exclusion. ok is false if
	// no pending record exists.
	Claim(ctx context.Context, workerID string) (exclusion []int, ok bool, err error)

	// Complete atomically finalizes a previously claimed exclusion: records
	// end_time, the timeout flag and duration, and clears claimed_by. If
	// solutions is non-empty, RecordSolutions runs within the same
	// transactional boundary.
	Complete(ctx context.Context, exclusion []int, timeout bool, solutions [][]int) error

	// RecordSolutions inserts any FoodSet not already present, folds its ids
	// into Foods-seen, and inserts any exclusion newly implied by the
	// expanded Foods-seen universe as pending. Entirely within a single
	// transactional boundary.
	RecordSolutions(ctx context.Context, solutions [][]int) error

	// TimedOutWorkers returns the claimed_by ids of all in-progress records
	// whose start_time is older than deadline.
	TimedOutWorkers(ctx context.Context, deadline time.Time) ([]string, error)

	// HasWork reports whether a pending or in-progress record remains.
	HasWork(ctx context.Context) (bool, error)

	// Resume clears start_time and claimed_by on every row left in_progress
	// by a prior crashed run, re-queuing them as pending.
	Resume(ctx context.Context) error

	// Solutions returns every stored FoodSet.
	Solutions(ctx context.Context) ([][]int, error)

	// FoodsSeen returns the current Foods-seen set.
	FoodsSeen(ctx context.Context) (map[int]bool, error)

	// ProcessStatus is the process_status observational view: in-progress
	// rows and their running durations as of now.
	ProcessStatus(ctx context.Context) ([]ExclusionRecord, error)

	// Close releases any resources held by the backend (connections, files).
	Close() error
}

// idsKey renders a sorted id slice (an Exclusion or a FoodSet) as its
// primary-key string; the empty exclusion renders as the empty string.
func idsKey(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// parseIDsKey is idsKey's inverse.
func parseIDsKey(key string) []int {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, _ := strconv.Atoi(p)
		out[i] = v
	}
	return out
}

// generateExclusions returns every subset of foodsSeen (the full power set,
// including the empty subset), each sorted ascending. This grows as 2^n in
// the size of foodsSeen; the design this mirrors acknowledges the same
// limitation for large Foods-seen universes.
func generateExclusions(foodsSeen []int) [][]int {
	ids := append([]int(nil), foodsSeen...)
	sort.Ints(ids)

	n := len(ids)
	total := 1 << uint(n)
	out := make([][]int, 0, total)
	for mask := 0; mask < total; mask++ {
		var subset []int
		for i := 0; i < n; i++ {
			if mask&(1<<uint(i)) != 0 {
				subset = append(subset, ids[i])
			}
		}
		out = append(out, subset)
	}
	return out
}
