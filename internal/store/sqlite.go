package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the embedded-database Store backend, for a single-machine
// run where no networked transactional store is available. Mutating
// operations serialize on an in-process mutex rather than relying on
// SQLite's own file locking: every worker in this process already shares one
// *sql.DB, so the mutex is strictly cheaper than forcing SQLITE_BUSY retries.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if absent) a SQLite-backed Store at path and
// runs its migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateSQLite(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("store: sqlite migration driver: %w", err)
	}
	src, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("store: sqlite migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("store: sqlite migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: sqlite migrate up: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO exclude (id, timeout) VALUES (?, 0)`, idsKey(nil))
	if err != nil {
		return fmt.Errorf("store: seeding empty exclusion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Claim(ctx context.Context, workerID string) ([]int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("store: claim begin: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx, `SELECT id FROM exclude WHERE start_time IS NULL AND end_time IS NULL LIMIT 1`).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: claim select: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE exclude SET start_time = ?, claimed_by = ? WHERE id = ?`,
		time.Now().UTC(), workerID, id); err != nil {
		return nil, false, fmt.Errorf("store: claim update: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("store: claim commit: %w", err)
	}
	return parseIDsKey(id), true, nil
}

func (s *SQLiteStore) Complete(ctx context.Context, exclusion []int, timeout bool, solutions [][]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: complete begin: %w", err)
	}
	defer tx.Rollback()

	id := idsKey(exclusion)
	var startTime sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT start_time FROM exclude WHERE id = ?`, id).Scan(&startTime); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("store: complete: exclusion %s not found", id)
		}
		return fmt.Errorf("store: complete select: %w", err)
	}

	now := time.Now().UTC()
	var durationMS int64
	if startTime.Valid {
		durationMS = now.Sub(startTime.Time).Milliseconds()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE exclude SET end_time = ?, timeout = ?, duration_ms = ?, claimed_by = NULL WHERE id = ?`,
		now, timeout, durationMS, id); err != nil {
		return fmt.Errorf("store: complete update: %w", err)
	}

	if len(solutions) > 0 {
		if err := recordSolutionsSQLite(ctx, tx, solutions); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecordSolutions(ctx context.Context, solutions [][]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: record_solutions begin: %w", err)
	}
	defer tx.Rollback()

	if err := recordSolutionsSQLite(ctx, tx, solutions); err != nil {
		return err
	}
	return tx.Commit()
}

// recordSolutionsSQLite inserts new FoodSets, folds their ids into foods,
// and inserts the exclusions newly implied by the expanded foods-seen
// universe, entirely inside tx's transactional boundary.
func recordSolutionsSQLite(ctx context.Context, tx *sql.Tx, solutions [][]int) error {
	for _, foodSet := range solutions {
		sorted := append([]int(nil), foodSet...)
		sort.Ints(sorted)
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO solutions (id) VALUES (?)`, idsKey(sorted)); err != nil {
			return fmt.Errorf("store: insert solution: %w", err)
		}
		for _, id := range sorted {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO foods (id) VALUES (?)`, id); err != nil {
				return fmt.Errorf("store: insert food: %w", err)
			}
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM foods`)
	if err != nil {
		return fmt.Errorf("store: read foods-seen: %w", err)
	}
	var foodsSeen []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan food id: %w", err)
		}
		foodsSeen = append(foodsSeen, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("store: iterate foods-seen: %w", err)
	}

	for _, exclusion := range generateExclusions(foodsSeen) {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO exclude (id, timeout) VALUES (?, 0)`, idsKey(exclusion)); err != nil {
			return fmt.Errorf("store: insert exclusion: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) TimedOutWorkers(ctx context.Context, deadline time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT claimed_by FROM exclude WHERE start_time IS NOT NULL AND end_time IS NULL AND start_time < ?`, deadline)
	if err != nil {
		return nil, fmt.Errorf("store: timed_out_workers: %w", err)
	}
	defer rows.Close()

	var workers []string
	for rows.Next() {
		var claimedBy sql.NullString
		if err := rows.Scan(&claimedBy); err != nil {
			return nil, fmt.Errorf("store: scan claimed_by: %w", err)
		}
		if claimedBy.Valid {
			workers = append(workers, claimedBy.String)
		}
	}
	return workers, rows.Err()
}

func (s *SQLiteStore) HasWork(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exclude WHERE end_time IS NULL`).Scan(&count); err != nil {
		return false, fmt.Errorf("store: has_work: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE exclude SET start_time = NULL, claimed_by = NULL WHERE end_time IS NULL`)
	if err != nil {
		return fmt.Errorf("store: resume: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Solutions(ctx context.Context) ([][]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM solutions`)
	if err != nil {
		return nil, fmt.Errorf("store: solutions: %w", err)
	}
	defer rows.Close()

	var out [][]int
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan solution id: %w", err)
		}
		out = append(out, parseIDsKey(id))
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FoodsSeen(ctx context.Context) (map[int]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM foods`)
	if err != nil {
		return nil, fmt.Errorf("store: foods_seen: %w", err)
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan food id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ProcessStatus(ctx context.Context) ([]ExclusionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_time, claimed_by FROM exclude WHERE start_time IS NOT NULL AND end_time IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: process_status: %w", err)
	}
	defer rows.Close()

	var out []ExclusionRecord
	now := time.Now().UTC()
	for rows.Next() {
		var id string
		var startTime time.Time
		var claimedBy sql.NullString
		if err := rows.Scan(&id, &startTime, &claimedBy); err != nil {
			return nil, fmt.Errorf("store: scan process_status row: %w", err)
		}
		rec := ExclusionRecord{
			Exclusion: parseIDsKey(id),
			StartTime: &startTime,
			Duration:  now.Sub(startTime),
		}
		if claimedBy.Valid {
			rec.ClaimedBy = claimedBy.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
