// Package collector absorbs the stream of candidate assignments a solve
// produces and keeps the best-so-far representative per distinct FoodSet.
package collector

import (
	"sync"

	"github.com/nutrisolve/nutrisolve/internal/foodmodel"
)

// Collector maintains best[FoodSet], replacing an entry only when a new
// candidate's TotalError is strictly lower. Equal TotalError never replaces:
// the first-seen assignment for a FoodSet is kept, so for a given delivery
// order a run's result is deterministic; which of several equal-error
// assignments survives depends on the order the solver delivers them in.
//
// Collector is safe for concurrent Offer/Drain calls: a solve running on its
// own goroutine can push onto a channel that a single Collector drains while
// other exclusion jobs' solves are doing the same concurrently against their
// own Collector instances.
type Collector struct {
	mu    sync.Mutex
	best  map[string]foodmodel.Assignment
	order []string
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{best: make(map[string]foodmodel.Assignment)}
}

// Offer absorbs one candidate assignment.
func (c *Collector) Offer(a foodmodel.Assignment) {
	key := foodmodel.FoodSetKey(a.FoodSet)

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, seen := c.best[key]
	if !seen {
		c.best[key] = a
		c.order = append(c.order, key)
		return
	}
	if a.TotalError < prev.TotalError {
		c.best[key] = a
	}
}

// Drain absorbs every assignment sent on in until the channel is closed. Run
// it on its own goroutine alongside foodmodel.Built.Stream's producer
// goroutine so neither side blocks the other.
func (c *Collector) Drain(in <-chan foodmodel.Assignment) {
	for a := range in {
		c.Offer(a)
	}
}

// Results returns the best assignment for every distinct FoodSet seen so
// far, in the order each FoodSet was first observed.
func (c *Collector) Results() []foodmodel.Assignment {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]foodmodel.Assignment, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.best[key])
	}
	return out
}

// Len returns the number of distinct FoodSets collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
