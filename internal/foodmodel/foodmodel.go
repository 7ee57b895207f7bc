// Package foodmodel builds the per-exclusion integer-programming model
// (decision variables, linkage/cardinality/nutrient-band/deviation
// constraints, and objective) and decodes raw solver assignments back into
// food-gram quantities.
package foodmodel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
	"github.com/nutrisolve/nutrisolve/pkg/minikanren"
)

// ErrInsufficientFoods signals that the effective catalog (the catalog minus
// an exclusion) has fewer foods than the requested cardinality. The model is
// infeasible by construction; callers must treat this as "zero solutions for
// this exclusion", not as a fatal error.
var ErrInsufficientFoods = errors.New("foodmodel: effective food count is below the requested cardinality")

// Assignment is one feasible quantity vector: the FoodSet (sorted food ids
// with a strictly positive linked contribution), the gram quantity assigned
// to each, the resulting per-nutrient intake, the per-nutrient absolute
// deviation from its band's lower bound, and their sum.
type Assignment struct {
	FoodSet    []int
	Quantities map[int]int
	Intake     []int
	Deviation  []int
	TotalError int
}

// FoodSetKey returns a stable, comparable identity for a FoodSet. ids is
// assumed sorted ascending, as every decoded Assignment's FoodSet already is.
func FoodSetKey(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// Built is a solver-ready model over the effective catalog, plus the
// variable handles the decoder needs to translate a raw solver row back into
// an Assignment.
type Built struct {
	model    *minikanren.Model
	foodIDs  []int // position j -> catalog food id, for the effective subset
	q        []*minikanren.FDVariable
	z        []*minikanren.FDVariable
	intake   []*minikanren.FDVariable
	e        []*minikanren.FDVariable
	cardinality *minikanren.FDVariable
}

// Model exposes the underlying constraint model, e.g. for direct use with
// minikanren.NewSolver. Solver.Solve returns assignments in search order;
// it does not rank them by total error.
func (b *Built) Model() *minikanren.Model { return b.model }

// Build constructs the integer-programming model over cat minus the food ids
// in exclude, for target cardinality n. qtyMax and errMax must already be
// computed from the full catalog (see internal/bounds), indexed the same way
// as cat.Foods and cat.Bands respectively.
//
// Decision variables, following the multiplicative-linkage pattern a solver
// without native z = q*u support needs:
//   - q[f]: grams of food f, 0..qtyMax[f]
//   - u[f]: whether f is used, {0,1}
//   - z[f]: linearized q[f]*u[f], 0..qtyMax[f]
//   - e[i]: absolute deviation of nutrient i's intake from its band minimum
func Build(cat *catalog.Catalog, qtyMax, errMax []int, exclude map[int]bool, n int) (*Built, error) {
	if n <= 0 || n > len(cat.Foods) {
		return nil, fmt.Errorf("foodmodel: cardinality %d out of range for a catalog of %d foods", n, len(cat.Foods))
	}
	if len(qtyMax) != len(cat.Foods) {
		return nil, fmt.Errorf("foodmodel: qtyMax length %d does not match catalog of %d foods", len(qtyMax), len(cat.Foods))
	}
	k := cat.K()
	if len(errMax) != k {
		return nil, fmt.Errorf("foodmodel: errMax length %d does not match %d nutrients", len(errMax), k)
	}

	var effIdx []int
	for idx, food := range cat.Foods {
		if exclude[food.ID] {
			continue
		}
		effIdx = append(effIdx, idx)
	}
	if len(effIdx) < n {
		return nil, ErrInsufficientFoods
	}

	model := minikanren.NewModel()

	foodIDs := make([]int, len(effIdx))
	q := make([]*minikanren.FDVariable, len(effIdx))
	u := make([]*minikanren.FDVariable, len(effIdx))
	z := make([]*minikanren.FDVariable, len(effIdx))

	for j, idx := range effIdx {
		food := cat.Foods[idx]
		foodIDs[j] = food.ID
		ceiling := qtyMax[idx]

		q[j] = model.NewVariableWithName(minikanren.NewIntervalDomainRange(0, ceiling, ceiling), fmt.Sprintf("q[%d]", food.ID))
		u[j] = model.NewVariableWithName(minikanren.NewIntervalDomainRange(0, 1, 1), fmt.Sprintf("u[%d]", food.ID))
		z[j] = model.NewVariableWithName(minikanren.NewIntervalDomainRange(0, ceiling, ceiling), fmt.Sprintf("z[%d]", food.ID))

		link, err := minikanren.NewLinking(q[j], u[j], z[j])
		if err != nil {
			return nil, fmt.Errorf("foodmodel: food %d: %w", food.ID, err)
		}
		model.AddConstraint(link)
	}

	cardinalityTarget := model.NewVariableWithName(minikanren.NewIntervalDomainRange(n, n, n), "cardinality")
	ones := make([]int, len(u))
	for i := range ones {
		ones[i] = 1
	}
	cardSum, err := minikanren.NewLinearSum(u, ones, cardinalityTarget)
	if err != nil {
		return nil, fmt.Errorf("foodmodel: cardinality constraint: %w", err)
	}
	model.AddConstraint(cardSum)

	intake := make([]*minikanren.FDVariable, k)
	e := make([]*minikanren.FDVariable, k)
	for i := 0; i < k; i++ {
		band := cat.Bands[i]
		coeffs := make([]int, len(effIdx))
		for j, idx := range effIdx {
			coeffs[j] = cat.Foods[idx].Coeffs[i]
		}

		// The nutrient band constraint (min_i <= sum <= max_i) is enforced by
		// construction: intake's own domain is the band itself, so any value
		// LinearSum propagates onto it is already clamped to the admissible range.
		intake[i] = model.NewVariableWithName(minikanren.NewIntervalDomainRange(band.Min, band.Max, band.Max), fmt.Sprintf("intake[%d]", i))
		intakeSum, err := minikanren.NewLinearSum(z, coeffs, intake[i])
		if err != nil {
			return nil, fmt.Errorf("foodmodel: nutrient %d intake sum: %w", i, err)
		}
		model.AddConstraint(intakeSum)

		e[i] = model.NewVariableWithName(minikanren.NewIntervalDomainRange(0, errMax[i], errMax[i]), fmt.Sprintf("e[%d]", i))
		dev, err := minikanren.NewAbsDeviation(intake[i], band.Min, e[i])
		if err != nil {
			return nil, fmt.Errorf("foodmodel: nutrient %d deviation: %w", i, err)
		}
		model.AddConstraint(dev)
	}

	objMax := 0
	for _, em := range errMax {
		objMax += em
	}
	objective := model.NewVariableWithName(minikanren.NewIntervalDomainRange(0, objMax, objMax), "objective")
	eOnes := make([]int, k)
	for i := range eOnes {
		eOnes[i] = 1
	}
	objSum, err := minikanren.NewLinearSum(e, eOnes, objective)
	if err != nil {
		return nil, fmt.Errorf("foodmodel: objective sum: %w", err)
	}
	model.AddConstraint(objSum)

	return &Built{
		model:       model,
		foodIDs:     foodIDs,
		q:           q,
		z:           z,
		intake:      intake,
		e:           e,
		cardinality: cardinalityTarget,
	}, nil
}

// Stream runs the solver to completion in a background goroutine, then
// pushes each decoded assignment with a non-empty FoodSet onto the returned
// channel for the collector to consume. Nothing is pushed before Solve
// returns, and if Solve returns an error (including cancellation of ctx)
// that error is sent and no assignments are. Both channels are closed when
// the goroutine exits; at most one error is ever sent on the error channel.
func (b *Built) Stream(ctx context.Context, maxSolutions int) (<-chan Assignment, <-chan error) {
	out := make(chan Assignment)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		solver := minikanren.NewSolver(b.model)
		raw, err := solver.Solve(ctx, maxSolutions)
		if err != nil {
			errc <- err
			return
		}

		for _, row := range raw {
			a := b.decode(row)
			if len(a.FoodSet) == 0 {
				continue
			}
			select {
			case out <- a:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
	}()

	return out, errc
}

// decode converts one raw complete solver assignment (indexed by FDVariable
// ID, as returned by Solver.Solve) into an Assignment.
func (b *Built) decode(row []int) Assignment {
	foodSet := make([]int, 0, len(b.foodIDs))
	qty := make(map[int]int)
	for j, id := range b.foodIDs {
		zVal := row[b.z[j].ID()]
		if zVal > 0 {
			foodSet = append(foodSet, id)
			qty[id] = row[b.q[j].ID()]
		}
	}
	sort.Ints(foodSet)

	intake := make([]int, len(b.intake))
	deviation := make([]int, len(b.e))
	total := 0
	for i := range b.intake {
		intake[i] = row[b.intake[i].ID()]
		deviation[i] = row[b.e[i].ID()]
		total += deviation[i]
	}

	return Assignment{
		FoodSet:    foodSet,
		Quantities: qty,
		Intake:     intake,
		Deviation:  deviation,
		TotalError: total,
	}
}
