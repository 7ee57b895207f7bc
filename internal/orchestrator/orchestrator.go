// Package orchestrator runs a single end-to-end solve: bootstrap over the
// full catalog, prime the exclusion queue, then drive the worker pool and
// timeout supervisor to completion.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisolve/nutrisolve/internal/bounds"
	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/internal/collector"
	"github.com/nutrisolve/nutrisolve/internal/foodmodel"
	"github.com/nutrisolve/nutrisolve/internal/store"
	"github.com/nutrisolve/nutrisolve/internal/supervisor"
	"github.com/nutrisolve/nutrisolve/internal/workerpool"
)

// Options configures a single run.
type Options struct {
	Catalog      *catalog.Catalog
	Cardinality  int
	Workers      int
	JobTimeout   time.Duration
	StartupGrace time.Duration
	MaxSolutions int
	Resume       bool
	Store        store.Store
	Logger       *zap.Logger
}

// Result summarizes a completed run.
type Result struct {
	Solutions [][]int
	FoodsSeen int
}

// Run executes the bootstrap/dispatch/termination state machine described
// for a single solve. It blocks until the queue is fully drained.
func Run(ctx context.Context, opts Options) (Result, error) {
	if opts.Cardinality <= 0 || opts.Catalog == nil || opts.Cardinality > len(opts.Catalog.Foods) {
		return Result{}, fmt.Errorf("orchestrator: cardinality %d out of range for the supplied catalog", opts.Cardinality)
	}
	if opts.Store == nil {
		return Result{}, fmt.Errorf("orchestrator: a Store is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = time.Hour
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = 5 * time.Second
	}

	qtyMax := bounds.QtyMax(opts.Catalog)
	errMax := bounds.ErrMax(opts.Catalog, qtyMax, opts.Cardinality)

	if opts.Resume {
		log.Info("resuming prior run: requeuing in-progress rows")
		if err := opts.Store.Resume(ctx); err != nil {
			return Result{}, fmt.Errorf("orchestrator: resume: %w", err)
		}
	} else {
		if err := opts.Store.Initialize(ctx); err != nil {
			return Result{}, fmt.Errorf("orchestrator: initialize: %w", err)
		}
		if err := bootstrap(ctx, opts, qtyMax, errMax, log); err != nil {
			return Result{}, fmt.Errorf("orchestrator: bootstrap: %w", err)
		}
	}

	sv := supervisor.New(supervisor.Config{
		Store:    opts.Store,
		Deadline: opts.JobTimeout,
		Logger:   log,
	})
	svCtx, cancelSv := context.WithCancel(ctx)
	defer cancelSv()
	go sv.Run(svCtx)

	pool := workerpool.New(workerpool.Config{
		Size:               opts.Workers,
		Catalog:            opts.Catalog,
		QtyMax:             qtyMax,
		ErrMax:             errMax,
		Cardinality:        opts.Cardinality,
		JobTimeout:         opts.JobTimeout,
		StartupGrace:       opts.StartupGrace,
		MaxSolutionsPerJob: opts.MaxSolutions,
		Store:              opts.Store,
		Logger:             log,
	})
	pool.Run(ctx)
	cancelSv()

	solutions, err := opts.Store.Solutions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: reading final solutions: %w", err)
	}
	seen, err := opts.Store.FoodsSeen(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: reading foods_seen: %w", err)
	}
	log.Info("run complete", zap.Int("solutions", len(solutions)), zap.Int("foods_seen", len(seen)))
	return Result{Solutions: solutions, FoodsSeen: len(seen)}, nil
}

// bootstrap solves over the full catalog with no exclusion and records
// every FoodSet found, seeding Foods-seen and the exclusion queue that
// record_solutions expands from it.
func bootstrap(ctx context.Context, opts Options, qtyMax, errMax []int, log *zap.Logger) error {
	built, err := foodmodel.Build(opts.Catalog, qtyMax, errMax, nil, opts.Cardinality)
	if err != nil {
		return fmt.Errorf("building bootstrap model: %w", err)
	}

	maxSolutions := opts.MaxSolutions
	if maxSolutions <= 0 {
		maxSolutions = 100_000
	}
	out, errc := built.Stream(ctx, maxSolutions)
	c := collector.New()
	c.Drain(out)
	if err := <-errc; err != nil {
		return fmt.Errorf("bootstrap solve: %w", err)
	}

	results := c.Results()
	solutions := make([][]int, len(results))
	for i, a := range results {
		solutions[i] = a.FoodSet
	}
	log.Info("bootstrap complete", zap.Int("food_sets", len(solutions)))
	// The empty exclusion was already seeded pending by Initialize; complete
	// it directly rather than routing it back through the worker pool, since
	// its solve already ran here.
	return opts.Store.Complete(ctx, nil, false, solutions)
}
