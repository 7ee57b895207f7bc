package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

// advisoryLockKey is the session-level lock id every mutating PGStore
// operation acquires via pg_advisory_lock/pg_advisory_unlock, serializing
// concurrent workers against the same queue table.
const advisoryLockKey = 1

// PGStore is the networked-database Store backend: one shared Postgres
// instance coordinating workers possibly running on different machines.
// Every mutating operation runs on a single reserved *sql.Conn so the
// session-scoped advisory lock it acquires is released by the same session
// that took it.
type PGStore struct {
	db *sql.DB
}

// OpenPostgres opens a Postgres-backed Store at dsn and runs its migrations.
func OpenPostgres(dsn string) (*PGStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening postgres connection: %w", err)
	}
	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, err
	}
	return &PGStore{db: db}, nil
}

func migratePostgres(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("store: postgres migration driver: %w", err)
	}
	src, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("store: postgres migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("store: postgres migrate init: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("store: postgres migrate up: %w", err)
	}
	return nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// withLock reserves one connection, acquires the session-scoped advisory
// lock on it, runs fn inside a transaction over that same connection, then
// releases the lock before returning the connection to the pool.
func (s *PGStore) withLock(ctx context.Context, fn func(tx *sql.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("store: reserving connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockKey); err != nil {
		return fmt.Errorf("store: acquiring advisory lock: %w", err)
	}
	defer conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, advisoryLockKey)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) Initialize(ctx context.Context) error {
	return s.withLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exclude (id, timeout) VALUES ($1, false) ON CONFLICT (id) DO NOTHING`, idsKey(nil))
		if err != nil {
			return fmt.Errorf("store: seeding empty exclusion: %w", err)
		}
		return nil
	})
}

func (s *PGStore) Claim(ctx context.Context, workerID string) ([]int, bool, error) {
	var exclusion []int
	var found bool

	err := s.withLock(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM exclude WHERE start_time IS NULL AND end_time IS NULL LIMIT 1`).Scan(&id)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			return fmt.Errorf("store: claim select: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE exclude SET start_time = $1, claimed_by = $2 WHERE id = $3`,
			time.Now().UTC(), workerID, id); err != nil {
			return fmt.Errorf("store: claim update: %w", err)
		}
		exclusion = parseIDsKey(id)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return exclusion, found, nil
}

func (s *PGStore) Complete(ctx context.Context, exclusion []int, timeout bool, solutions [][]int) error {
	return s.withLock(ctx, func(tx *sql.Tx) error {
		id := idsKey(exclusion)
		var startTime sql.NullTime
		if err := tx.QueryRowContext(ctx, `SELECT start_time FROM exclude WHERE id = $1`, id).Scan(&startTime); err != nil {
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
			`UPDATE exclude SET end_time = $1, timeout = $2, duration_ms = $3, claimed_by = NULL WHERE id = $4`,
			now, timeout, durationMS, id); err != nil {
			return fmt.Errorf("store: complete update: %w", err)
		}

		if len(solutions) > 0 {
			return recordSolutionsPostgres(ctx, tx, solutions)
		}
		return nil
	})
}

func (s *PGStore) RecordSolutions(ctx context.Context, solutions [][]int) error {
	return s.withLock(ctx, func(tx *sql.Tx) error {
		return recordSolutionsPostgres(ctx, tx, solutions)
	})
}

func recordSolutionsPostgres(ctx context.Context, tx *sql.Tx, solutions [][]int) error {
	for _, foodSet := range solutions {
		sorted := append([]int(nil), foodSet...)
		sort.Ints(sorted)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO solutions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, idsKey(sorted)); err != nil {
			return fmt.Errorf("store: insert solution: %w", err)
		}
		for _, id := range sorted {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO foods (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id); err != nil {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exclude (id, timeout) VALUES ($1, false) ON CONFLICT (id) DO NOTHING`, idsKey(exclusion)); err != nil {
			return fmt.Errorf("store: insert exclusion: %w", err)
		}
	}
	return nil
}

func (s *PGStore) TimedOutWorkers(ctx context.Context, deadline time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT claimed_by FROM exclude WHERE start_time IS NOT NULL AND end_time IS NULL AND start_time < $1`, deadline)
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

func (s *PGStore) HasWork(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exclude WHERE end_time IS NULL`).Scan(&count); err != nil {
		return false, fmt.Errorf("store: has_work: %w", err)
	}
	return count > 0, nil
}

func (s *PGStore) Resume(ctx context.Context) error {
	return s.withLock(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE exclude SET start_time = NULL, claimed_by = NULL WHERE end_time IS NULL`)
		if err != nil {
			return fmt.Errorf("store: resume: %w", err)
		}
		return nil
	})
}

func (s *PGStore) Solutions(ctx context.Context) ([][]int, error) {
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

func (s *PGStore) FoodsSeen(ctx context.Context) (map[int]bool, error) {
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

func (s *PGStore) ProcessStatus(ctx context.Context) ([]ExclusionRecord, error) {
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
