package minikanren

import "fmt"

// absdeviation.go: AbsDeviation enforces e = |x - target|, where target is a
// fixed constant (a nutrient band's minimum requirement, scaled to integers).
// Representing |x| by walking every value in range would be unusable once
// x's domain spans the gram-quantity ranges this model needs; AbsDeviation
// instead derives e's bounds directly from x's bounds and prunes x back from
// e, exactly as LinearSum does for sums.
type AbsDeviation struct {
	x      *FDVariable
	target int
	e      *FDVariable
}

// NewAbsDeviation constructs e = |x - target|.
func NewAbsDeviation(x *FDVariable, target int, e *FDVariable) (*AbsDeviation, error) {
	if x == nil || e == nil {
		return nil, fmt.Errorf("AbsDeviation: x and e must be non-nil")
	}
	return &AbsDeviation{x: x, target: target, e: e}, nil
}

func (c *AbsDeviation) Variables() []*FDVariable {
	return []*FDVariable{c.x, c.e}
}

func (c *AbsDeviation) Type() string { return "AbsDeviation" }

func (c *AbsDeviation) String() string {
	return fmt.Sprintf("AbsDeviation(|%d - %d| = %d)", c.x.ID(), c.target, c.e.ID())
}

// Propagate applies bounds-consistent pruning for e = |x - target|.
// Implements PropagationConstraint.
func (c *AbsDeviation) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	if solver == nil {
		return nil, fmt.Errorf("AbsDeviation.Propagate: nil solver")
	}

	dx := solver.GetDomain(state, c.x.ID())
	de := solver.GetDomain(state, c.e.ID())
	if dx == nil || de == nil {
		return nil, fmt.Errorf("AbsDeviation: nil domain encountered")
	}
	if dx.Count() == 0 || de.Count() == 0 {
		return nil, fmt.Errorf("AbsDeviation: empty domain encountered")
	}

	minX, maxX := dx.Min(), dx.Max()
	t := c.target

	// e's admissible range given x's current bounds: the minimum |x-t| is 0 if
	// t falls inside [minX, maxX], otherwise the distance to the nearer bound;
	// the maximum is always the distance to the farther bound.
	var eMin int
	if t >= minX && t <= maxX {
		eMin = 0
	} else if t < minX {
		eMin = minX - t
	} else {
		eMin = t - maxX
	}
	distMinX := abs(minX - t)
	distMaxX := abs(maxX - t)
	eMax := distMinX
	if distMaxX > eMax {
		eMax = distMaxX
	}

	changed := false
	if de.Min() < eMin {
		de = de.RemoveBelow(eMin)
		changed = true
	}
	if de.Max() > eMax {
		de = de.RemoveAbove(eMax)
		changed = true
	}
	if de.Count() == 0 {
		return nil, fmt.Errorf("AbsDeviation: e domain became empty after pruning")
	}
	if changed {
		state, _ = solver.SetDomain(state, c.e.ID(), de)
	}

	// Back-propagate to x: x must lie within [t-e.max, t+e.max], and outside
	// the open interval (t-e.min, t+e.min) whenever e.min > 0 forces a gap.
	// No hole is carved: a bound of x that falls inside the gap is moved to
	// the nearest value just outside it, and a gap lying strictly between
	// x's bounds is left in the domain.
	loBound := t - de.Max()
	hiBound := t + de.Max()
	newMinX := minX
	newMaxX := maxX
	if loBound > newMinX {
		newMinX = loBound
	}
	if hiBound < newMaxX {
		newMaxX = hiBound
	}

	if de.Min() > 0 {
		gapLo := t - de.Min() + 1
		gapHi := t + de.Min() - 1
		if gapLo <= newMinX && gapHi >= newMaxX {
			return nil, fmt.Errorf("AbsDeviation: x domain excluded entirely by minimum deviation")
		}
		if newMinX >= gapLo && newMinX <= gapHi {
			// x's lower bound sits inside the forbidden gap, so every value
			// from it up to gapHi is excluded; push it just past the gap.
			belowSpan := gapLo - newMinX
			aboveSpan := newMaxX - gapHi
			if aboveSpan > belowSpan && gapHi+1 <= newMaxX {
				newMinX = gapHi + 1
			}
		}
		if newMaxX >= gapLo && newMaxX <= gapHi {
			if gapLo-1 >= newMinX {
				newMaxX = gapLo - 1
			}
		}
	}

	if newMinX > minX || newMaxX < maxX {
		if newMinX > minX {
			dx = dx.RemoveBelow(newMinX)
		}
		if dx.Count() > 0 && newMaxX < maxX {
			dx = dx.RemoveAbove(newMaxX)
		}
		if dx.Count() == 0 {
			return nil, fmt.Errorf("AbsDeviation: x domain became empty after pruning")
		}
		state, _ = solver.SetDomain(state, c.x.ID(), dx)
	}

	return state, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
