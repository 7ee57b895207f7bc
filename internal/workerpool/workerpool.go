// Package workerpool runs a fixed number of worker slots, each executing the
// claim -> build model -> solve -> collect -> complete loop against a shared
// Store. Task execution itself is delegated to a StaticWorkerPool (a bounded
// task-channel pool with a fixed goroutine count) rather than the dynamic
// autoscaling pool, since a solver job's cost is not something queue depth
// should drive scaling decisions from: cardinality N and the per-job
// deadline already bound the work a slot can take on. Per-job deadlines run
// through a DeadlockDetector so a goroutine wedged inside the solver (as
// opposed to a crashed process, which the supervisor package watches for via
// the Store) still surfaces as an alert.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/internal/collector"
	"github.com/nutrisolve/nutrisolve/internal/foodmodel"
	"github.com/nutrisolve/nutrisolve/internal/parallel"
	"github.com/nutrisolve/nutrisolve/internal/store"
)

// Config bundles the fixed inputs every worker needs to build and solve a
// reduced model. Pool holds no other mutable state of its own.
type Config struct {
	Size               int
	Catalog            *catalog.Catalog
	QtyMax             []int
	ErrMax             []int
	Cardinality        int
	JobTimeout         time.Duration
	StartupGrace       time.Duration
	MaxSolutionsPerJob int
	Store              store.Store
	Logger             *zap.Logger
}

// Pool dispatches pending exclusions onto a bounded set of worker slots.
type Pool struct {
	cfg      Config
	sem      chan struct{}
	swp      *parallel.StaticWorkerPool
	detector *parallel.DeadlockDetector
	wg       sync.WaitGroup
	nextID   atomic.Int64
	pollRate time.Duration
}

// New constructs a Pool. A non-positive Size defaults to the number of
// logical cores, matching the one-worker-per-core scheduling model.
func New(cfg Config) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = runtime.NumCPU()
	}
	if cfg.MaxSolutionsPerJob <= 0 {
		cfg.MaxSolutionsPerJob = 100_000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Hour
	}
	return &Pool{
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.Size),
		swp:      parallel.NewStaticWorkerPool(cfg.Size),
		detector: parallel.NewDeadlockDetector(cfg.JobTimeout, cfg.JobTimeout/5),
		pollRate: 100 * time.Millisecond,
	}
}

// Run dispatches claimed exclusions to worker slots until the queue has no
// pending or in-progress work remaining (tolerating StartupGrace of
// transient emptiness) or ctx is cancelled. It blocks until every launched
// job has returned.
func (p *Pool) Run(ctx context.Context) {
	defer p.Shutdown()
	var idleSince time.Time

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			return
		default:
		}

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			p.wg.Wait()
			return
		}

		workerID := fmt.Sprintf("worker-%d", p.nextID.Add(1))
		exclusion, ok, err := p.cfg.Store.Claim(ctx, workerID)
		if err != nil {
			<-p.sem
			p.cfg.Logger.Error("claim failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if !ok {
			<-p.sem
			if p.shouldTerminate(ctx, &idleSince) {
				p.wg.Wait()
				return
			}
			continue
		}

		idleSince = time.Time{}
		p.wg.Add(1)
		task := func() {
			defer p.wg.Done()
			defer func() { <-p.sem }()
			p.runJob(ctx, workerID, exclusion)
		}
		if err := p.swp.Submit(ctx, task); err != nil {
			p.wg.Done()
			<-p.sem
			p.cfg.Logger.Error("submit failed", zap.Error(err))
		}
	}
}

// Shutdown stops the underlying StaticWorkerPool and DeadlockDetector. Call
// after Run has returned.
func (p *Pool) Shutdown() {
	p.swp.Shutdown()
	p.detector.Shutdown()
}

// shouldTerminate reports whether the dispatch loop has observed no work
// (pending or in-progress) for longer than StartupGrace.
func (p *Pool) shouldTerminate(ctx context.Context, idleSince *time.Time) bool {
	has, err := p.cfg.Store.HasWork(ctx)
	if err != nil {
		p.cfg.Logger.Error("has_work failed", zap.Error(err))
		time.Sleep(p.pollRate)
		return false
	}
	if has {
		*idleSince = time.Time{}
		time.Sleep(p.pollRate)
		return false
	}
	if idleSince.IsZero() {
		*idleSince = time.Now()
	}
	if time.Since(*idleSince) > p.cfg.StartupGrace {
		return true
	}
	time.Sleep(p.pollRate)
	return false
}

// runJob builds the reduced model for exclusion, solves it under the
// configured per-job deadline, and reports the outcome to the Store.
func (p *Pool) runJob(ctx context.Context, workerID string, exclusion []int) {
	log := p.cfg.Logger.With(zap.String("worker", workerID), zap.Ints("exclusion", exclusion))

	excludeSet := make(map[int]bool, len(exclusion))
	for _, id := range exclusion {
		excludeSet[id] = true
	}

	built, err := foodmodel.Build(p.cfg.Catalog, p.cfg.QtyMax, p.cfg.ErrMax, excludeSet, p.cfg.Cardinality)
	if errors.Is(err, foodmodel.ErrInsufficientFoods) {
		log.Info("infeasible by construction: fewer effective foods than cardinality")
		if cerr := p.cfg.Store.Complete(ctx, exclusion, false, nil); cerr != nil {
			log.Error("complete failed", zap.Error(cerr))
		}
		return
	}
	if err != nil {
		log.Error("model build failed", zap.Error(err))
		if cerr := p.cfg.Store.Complete(ctx, exclusion, false, nil); cerr != nil {
			log.Error("complete failed", zap.Error(cerr))
		}
		return
	}

	taskID := fmt.Sprintf("%s:%v", workerID, exclusion)
	jobCtx, cancel := p.detector.TimeoutContext(ctx, taskID, fmt.Sprintf("solve exclusion %v", exclusion))
	defer cancel()

	out, errc := built.Stream(jobCtx, p.cfg.MaxSolutionsPerJob)
	c := collector.New()
	c.Drain(out)
	solveErr := <-errc

	timedOut := errors.Is(solveErr, context.DeadlineExceeded)
	if solveErr != nil && !timedOut && !errors.Is(solveErr, context.Canceled) {
		log.Error("solve error", zap.Error(solveErr))
	}

	results := c.Results()
	solutions := make([][]int, len(results))
	for i, a := range results {
		solutions[i] = a.FoodSet
	}

	if err := p.cfg.Store.Complete(ctx, exclusion, timedOut, solutions); err != nil {
		log.Error("complete failed", zap.Error(err))
		return
	}
	log.Info("exclusion solved", zap.Int("solutions", len(solutions)), zap.Bool("timeout", timedOut))
}
