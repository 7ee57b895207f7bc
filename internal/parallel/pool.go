// Package parallel provides a fixed-size worker pool and a deadlock
// detector for bounding and monitoring concurrent task execution.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = fmt.Errorf("worker pool has been shutdown")

// StaticWorkerPool provides a fixed-size worker pool without dynamic scaling.
type StaticWorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewStaticWorkerPool creates a new static worker pool with fixed size.
func NewStaticWorkerPool(maxWorkers int) *StaticWorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &StaticWorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
	}

	// Start worker goroutines
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}

	return pool
}

// worker is the main worker loop for static pool.
func (swp *StaticWorkerPool) worker() {
	defer swp.workerWg.Done()

	for {
		select {
		case task := <-swp.taskChan:
			if task != nil {
				task()
			}
		case <-swp.shutdownChan:
			return
		}
	}
}

// Submit submits a task to the static worker pool.
func (swp *StaticWorkerPool) Submit(ctx context.Context, task func()) error {
	// Shutdown closes taskChan; check shutdownChan first so the send below is
	// never attempted on a closed channel.
	select {
	case <-swp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case swp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-swp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown shuts down the static worker pool.
func (swp *StaticWorkerPool) Shutdown() {
	swp.once.Do(func() {
		close(swp.shutdownChan)
		close(swp.taskChan)
		swp.workerWg.Wait()
	})
}

// GetWorkerCount returns the number of workers (static).
func (swp *StaticWorkerPool) GetWorkerCount() int {
	return swp.maxWorkers
}

// GetQueueDepth returns the current queue depth.
func (swp *StaticWorkerPool) GetQueueDepth() int {
	return len(swp.taskChan)
}

// GetMaxWorkers returns the maximum workers (same as current for static pool).
func (swp *StaticWorkerPool) GetMaxWorkers() int {
	return swp.maxWorkers
}

// DeadlockDetector monitors for potential deadlocks in parallel execution.
type DeadlockDetector struct {
	mu sync.RWMutex

	// Configuration
	timeoutDuration time.Duration
	checkInterval   time.Duration
	maxRetries      int

	// State tracking
	activeTasks        map[string]*taskInfo
	lastActivity       time.Time
	potentialDeadlocks int64

	// Channels
	shutdownChan chan struct{}
	alertChan    chan DeadlockAlert
}

type taskInfo struct {
	id          string
	startTime   time.Time
	lastUpdate  time.Time
	description string
}

type DeadlockAlert struct {
	Type        DeadlockAlertType
	TaskID      string
	Description string
	Timestamp   time.Time
}

type DeadlockAlertType int

const (
	AlertTaskTimeout DeadlockAlertType = iota
	AlertPotentialDeadlock
	AlertSystemStall
)

// NewDeadlockDetector creates a new deadlock detector.
func NewDeadlockDetector(timeoutDuration, checkInterval time.Duration) *DeadlockDetector {
	if timeoutDuration <= 0 {
		timeoutDuration = 30 * time.Second
	}
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}

	dd := &DeadlockDetector{
		timeoutDuration: timeoutDuration,
		checkInterval:   checkInterval,
		maxRetries:      3,
		activeTasks:     make(map[string]*taskInfo),
		lastActivity:    time.Now(),
		shutdownChan:    make(chan struct{}),
		alertChan:       make(chan DeadlockAlert, 10),
	}

	go dd.monitor()

	return dd
}

// RegisterTask registers a new active task for monitoring.
func (dd *DeadlockDetector) RegisterTask(taskID, description string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	dd.activeTasks[taskID] = &taskInfo{
		id:          taskID,
		startTime:   time.Now(),
		lastUpdate:  time.Now(),
		description: description,
	}
	dd.lastActivity = time.Now()
}

// UpdateTask updates the last activity time for a task.
func (dd *DeadlockDetector) UpdateTask(taskID string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	if task, exists := dd.activeTasks[taskID]; exists {
		task.lastUpdate = time.Now()
		dd.lastActivity = time.Now()
	}
}

// UnregisterTask removes a task from monitoring.
func (dd *DeadlockDetector) UnregisterTask(taskID string) {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	delete(dd.activeTasks, taskID)
}

// GetAlerts returns a channel for receiving deadlock alerts.
func (dd *DeadlockDetector) GetAlerts() <-chan DeadlockAlert {
	return dd.alertChan
}

// GetActiveTaskCount returns the number of currently monitored tasks.
func (dd *DeadlockDetector) GetActiveTaskCount() int {
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return len(dd.activeTasks)
}

// GetPotentialDeadlocks returns the count of potential deadlocks detected.
func (dd *DeadlockDetector) GetPotentialDeadlocks() int64 {
	dd.mu.RLock()
	defer dd.mu.RUnlock()
	return dd.potentialDeadlocks
}

// Shutdown stops the deadlock detector.
func (dd *DeadlockDetector) Shutdown() {
	close(dd.shutdownChan)
}

// monitor runs the deadlock detection loop.
func (dd *DeadlockDetector) monitor() {
	ticker := time.NewTicker(dd.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dd.checkForDeadlocks()
		case <-dd.shutdownChan:
			return
		}
	}
}

// checkForDeadlocks performs deadlock detection checks.
func (dd *DeadlockDetector) checkForDeadlocks() {
	dd.mu.Lock()
	defer dd.mu.Unlock()

	now := time.Now()

	// Check for task timeouts
	for taskID, task := range dd.activeTasks {
		if now.Sub(task.lastUpdate) > dd.timeoutDuration {
			alert := DeadlockAlert{
				Type:        AlertTaskTimeout,
				TaskID:      taskID,
				Description: fmt.Sprintf("Task '%s' timed out after %v", task.description, now.Sub(task.startTime)),
				Timestamp:   now,
			}
			select {
			case dd.alertChan <- alert:
			default:
				// Alert channel full, drop alert
			}
			dd.potentialDeadlocks++
		}
	}

	// Check for system-wide stall (no activity for extended period)
	stallThreshold := dd.timeoutDuration * 2
	if now.Sub(dd.lastActivity) > stallThreshold && len(dd.activeTasks) > 0 {
		alert := DeadlockAlert{
			Type:        AlertSystemStall,
			Description: fmt.Sprintf("System stall detected: no activity for %v with %d active tasks", now.Sub(dd.lastActivity), len(dd.activeTasks)),
			Timestamp:   now,
		}
		select {
		case dd.alertChan <- alert:
		default:
			// Alert channel full, drop alert
		}
		dd.potentialDeadlocks++
	}

	// Check for potential deadlocks (circular wait conditions)
	// This is a simplified check - in a real system you'd analyze wait-for graphs
	if len(dd.activeTasks) > 0 {
		oldestTask := now
		totalTasks := 0

		for _, task := range dd.activeTasks {
			if task.startTime.Before(oldestTask) {
				oldestTask = task.startTime
			}
			totalTasks++
		}

		// If we have many long-running tasks, it might indicate a deadlock
		if totalTasks >= 3 && now.Sub(oldestTask) > dd.timeoutDuration*2 {
			alert := DeadlockAlert{
				Type:        AlertPotentialDeadlock,
				Description: fmt.Sprintf("Potential deadlock: %d tasks running for extended period", totalTasks),
				Timestamp:   now,
			}
			select {
			case dd.alertChan <- alert:
			default:
				// Alert channel full, drop alert
			}
			dd.potentialDeadlocks++
		}
	}
}

// TimeoutContext creates a context with deadlock-aware timeout.
func (dd *DeadlockDetector) TimeoutContext(parent context.Context, taskID, description string) (context.Context, context.CancelFunc) {
	dd.RegisterTask(taskID, description)

	ctx, cancel := context.WithTimeout(parent, dd.timeoutDuration)

	// Wrap the cancel function to unregister the task
	originalCancel := cancel
	cancel = func() {
		dd.UnregisterTask(taskID)
		originalCancel()
	}

	return ctx, cancel
}

// ExecuteWithDeadlockProtection executes a function with deadlock protection.
func (dd *DeadlockDetector) ExecuteWithDeadlockProtection(ctx context.Context, taskID, description string, fn func(context.Context) error) error {
	taskCtx, cancel := dd.TimeoutContext(ctx, taskID, description)
	defer cancel()

	done := make(chan error, 1)

	go func() {
		defer dd.UpdateTask(taskID) // Final update
		done <- fn(taskCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-taskCtx.Done():
		if taskCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("task '%s' timed out: %w", description, taskCtx.Err())
		}
		return taskCtx.Err()
	}
}
