package minikanren

import "testing"

func TestLinking_UsedOffPinsContributionToZero(t *testing.T) {
	model := NewModel()
	q := model.NewVariable(NewIntervalDomainRange(0, 500, 500))
	u := model.NewVariable(NewIntervalDomainRange(0, 0, 1))
	z := model.NewVariable(NewIntervalDomainRange(0, 500, 500))

	link, err := NewLinking(q, u, z)
	if err != nil {
		t.Fatalf("NewLinking failed: %v", err)
	}
	model.AddConstraint(link)

	solver := NewSolver(model)
	state := (*SolverState)(nil)

	newState, err := link.Propagate(solver, state)
	if err != nil {
		t.Fatalf("propagation error: %v", err)
	}
	zDom := solver.GetDomain(newState, z.ID())
	if !zDom.IsSingleton() || zDom.SingletonValue() != 0 {
		t.Fatalf("expected contribution pinned to 0, got %s", zDom.String())
	}
	qDom := solver.GetDomain(newState, q.ID())
	if !qDom.IsSingleton() || qDom.SingletonValue() != 0 {
		t.Fatalf("expected quantity pinned to 0, got %s", qDom.String())
	}
}

func TestLinking_UsedOnForcesEquality(t *testing.T) {
	model := NewModel()
	q := model.NewVariable(NewIntervalDomainRange(0, 500, 500))
	u := model.NewVariable(NewIntervalDomainRange(1, 1, 1))
	z := model.NewVariable(NewIntervalDomainRange(50, 200, 500))

	link, err := NewLinking(q, u, z)
	if err != nil {
		t.Fatalf("NewLinking failed: %v", err)
	}
	model.AddConstraint(link)

	solver := NewSolver(model)
	state := (*SolverState)(nil)

	newState, err := link.Propagate(solver, state)
	if err != nil {
		t.Fatalf("propagation error: %v", err)
	}
	qDom := solver.GetDomain(newState, q.ID())
	zDom := solver.GetDomain(newState, z.ID())
	if qDom.Min() != 50 || qDom.Max() != 200 {
		t.Fatalf("expected quantity pruned to [50,200], got [%d,%d]", qDom.Min(), qDom.Max())
	}
	if zDom.Min() != 50 || zDom.Max() != 200 {
		t.Fatalf("expected contribution unchanged at [50,200], got [%d,%d]", zDom.Min(), zDom.Max())
	}
}

func TestLinking_UndeterminedUsedBoundsContributionByQuantityMax(t *testing.T) {
	model := NewModel()
	q := model.NewVariable(NewIntervalDomainRange(0, 300, 300))
	u := model.NewVariable(NewIntervalDomainRange(0, 1, 1))
	z := model.NewVariable(NewIntervalDomainRange(0, 1000, 1000))

	link, err := NewLinking(q, u, z)
	if err != nil {
		t.Fatalf("NewLinking failed: %v", err)
	}
	model.AddConstraint(link)

	solver := NewSolver(model)
	state := (*SolverState)(nil)

	newState, err := link.Propagate(solver, state)
	if err != nil {
		t.Fatalf("propagation error: %v", err)
	}
	zDom := solver.GetDomain(newState, z.ID())
	if zDom.Min() != 0 || zDom.Max() != 300 {
		t.Fatalf("expected contribution bounded to [0,300], got [%d,%d]", zDom.Min(), zDom.Max())
	}
}

func TestLinking_RejectsEmptyUsedDomain(t *testing.T) {
	model := NewModel()
	q := model.NewVariable(NewIntervalDomainRange(0, 10, 10))
	u := model.NewVariable(NewIntervalDomainRange(5, 4, 2)) // deliberately empty
	z := model.NewVariable(NewIntervalDomainRange(0, 10, 10))

	link, err := NewLinking(q, u, z)
	if err != nil {
		t.Fatalf("NewLinking failed: %v", err)
	}
	solver := NewSolver(model)
	state := (*SolverState)(nil)
	if _, err := link.Propagate(solver, state); err == nil {
		t.Fatalf("expected error for empty used domain")
	}
}
