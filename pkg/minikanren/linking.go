package minikanren

import "fmt"

// linking.go: Linking enforces contribution = used ? quantity : 0, the
// finite-domain form of the big-M linearization z[f] = q[f] * u[f] a MILP
// formulation needs for the same relation (z[f] <= M*u[f], z[f] <= q[f],
// z[f] >= q[f] - M*(1-u[f]), z[f] >= 0). used is a zero-based binary variable
// over {0,1} (IntervalDomain supports a zero-valued domain, unlike
// BitSetDomain's 1-indexed bitset); quantity and contribution share the same
// zero-based domain, so "on" collapses to a plain equality and "off"
// collapses to pinning contribution to zero. A dedicated propagator for this
// shape is both tighter and cheaper than emitting the four big-M inequalities
// as separate LinearSum constraints, the same tradeoff dedicated global
// propagators generally make over their generic-constraint encodings.
type Linking struct {
	quantity     *FDVariable
	used         *FDVariable
	contribution *FDVariable
}

// NewLinking constructs contribution = used ? quantity : 0. used must be a
// zero-based binary variable over {0,1}; quantity and contribution must
// share a zero-based domain.
func NewLinking(quantity, used, contribution *FDVariable) (*Linking, error) {
	if quantity == nil || used == nil || contribution == nil {
		return nil, fmt.Errorf("Linking: quantity, used and contribution must be non-nil")
	}
	return &Linking{quantity: quantity, used: used, contribution: contribution}, nil
}

func (c *Linking) Variables() []*FDVariable {
	return []*FDVariable{c.quantity, c.used, c.contribution}
}

func (c *Linking) Type() string { return "Linking" }

func (c *Linking) String() string {
	return fmt.Sprintf("Linking(%d = %d ? %d : floor)", c.contribution.ID(), c.used.ID(), c.quantity.ID())
}

// Propagate applies bounds-consistent pruning for contribution = used ?
// quantity : 0. Implements PropagationConstraint.
func (c *Linking) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	if solver == nil {
		return nil, fmt.Errorf("Linking.Propagate: nil solver")
	}

	dq := solver.GetDomain(state, c.quantity.ID())
	du := solver.GetDomain(state, c.used.ID())
	dz := solver.GetDomain(state, c.contribution.ID())
	if dq == nil || du == nil || dz == nil {
		return nil, fmt.Errorf("Linking: nil domain encountered")
	}
	if dq.Count() == 0 || du.Count() == 0 || dz.Count() == 0 {
		return nil, fmt.Errorf("Linking: empty domain encountered")
	}

	canBeOff := du.Has(0)
	canBeOn := du.Has(1)
	if !canBeOff && !canBeOn {
		return nil, fmt.Errorf("Linking: used domain has neither off(0) nor on(1)")
	}

	const floor = 0

	switch {
	case canBeOff && !canBeOn:
		// used is pinned off: contribution must sit at the floor. quantity is
		// pinned to the floor too, not just contribution: a food's raw
		// quantity is never reported once it is excluded from the solution's
		// used set, so collapsing it removes a huge class of otherwise-free
		// variable assignments that would never change which foods end up
		// selected, only inflate the number of enumerated search states.
		if dz.Min() != floor || !dz.IsSingleton() {
			newZ := dz.RemoveBelow(floor)
			if newZ.Count() > 0 {
				newZ = newZ.RemoveAbove(floor)
			}
			if newZ.Count() == 0 {
				return nil, fmt.Errorf("Linking: contribution cannot be pinned to floor while used is off")
			}
			if !newZ.Equal(dz) {
				state, _ = solver.SetDomain(state, c.contribution.ID(), newZ)
			}
		}
		if dq.Min() != floor || !dq.IsSingleton() {
			newQ := dq.RemoveBelow(floor)
			if newQ.Count() > 0 {
				newQ = newQ.RemoveAbove(floor)
			}
			if newQ.Count() == 0 {
				return nil, fmt.Errorf("Linking: quantity cannot be pinned to floor while used is off")
			}
			if !newQ.Equal(dq) {
				state, _ = solver.SetDomain(state, c.quantity.ID(), newQ)
			}
		}

	case !canBeOff && canBeOn:
		// used is pinned on: contribution == quantity exactly.
		newQ := dq.Intersect(dz)
		newZ := dz.Intersect(dq)
		if newQ.Count() == 0 || newZ.Count() == 0 {
			return nil, fmt.Errorf("Linking: quantity/contribution ranges disjoint while used is on")
		}
		if !newQ.Equal(dq) {
			state, _ = solver.SetDomain(state, c.quantity.ID(), newQ)
		}
		if !newZ.Equal(dz) {
			state, _ = solver.SetDomain(state, c.contribution.ID(), newZ)
		}

	default:
		// used is undetermined: contribution's feasible set is {floor} ∪
		// [quantity.min, quantity.max]. The tight interval hull is
		// [floor, quantity.max], since quantity.min >= floor always.
		lo := floor
		hi := dq.Max()
		changed := false
		newZ := dz
		if newZ.Min() < lo {
			newZ = newZ.RemoveBelow(lo)
			changed = true
		}
		if newZ.Max() > hi {
			newZ = newZ.RemoveAbove(hi)
			changed = true
		}
		if newZ.Count() == 0 {
			return nil, fmt.Errorf("Linking: contribution domain became empty after pruning")
		}
		if changed {
			state, _ = solver.SetDomain(state, c.contribution.ID(), newZ)
		}
	}

	return state, nil
}
