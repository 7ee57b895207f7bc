// Package bounds precomputes the per-food quantity ceiling and per-nutrient
// error ceiling the Solver Model Builder needs to size its decision variable
// domains before any solve is attempted.
package bounds

import (
	"sort"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
)

// LargeSentinel mirrors catalog.LargeSentinel for an all-zero-coefficient
// food: beyond it, no nutrient upper bound constrains the food at all, so its
// domain ceiling is conventionally capped rather than left unbounded.
const LargeSentinel = catalog.LargeSentinel

// QtyMax computes, for every food in the catalog, the gram ceiling
// qty_max[f] = ceil(min_i{ max_i/coeff_i(f) : coeff_i(f) > 0 }): the smallest
// quantity at which the food on its own reaches some nutrient's upper bound.
// Because of the rounding up, qty_max[f]*coeff_i(f) can exceed max_i.
func QtyMax(cat *catalog.Catalog) []int {
	out := make([]int, len(cat.Foods))
	for fi, food := range cat.Foods {
		best := -1
		for i, band := range cat.Bands {
			c := food.Coeffs[i]
			if c <= 0 {
				continue
			}
			candidate := ceilDiv(band.Max, c)
			if best == -1 || candidate < best {
				best = candidate
			}
		}
		if best == -1 {
			out[fi] = LargeSentinel
		} else {
			out[fi] = best
		}
	}
	return out
}

// ErrMax computes, for every nutrient i, a safe upper bound on the absolute
// deviation variable e[i]: the sum of the N largest values of
// coeff_i(f)*qty_max[f] across all foods, minus min_i. Grounded on the
// original's find_top_values_in_each_column / find_max_error: sort each
// nutrient column descending, sum the top N, then subtract the lower bound.
func ErrMax(cat *catalog.Catalog, qtyMax []int, n int) []int {
	k := cat.K()
	out := make([]int, k)
	for i := 0; i < k; i++ {
		contributions := make([]int, len(cat.Foods))
		for fi, food := range cat.Foods {
			contributions[fi] = food.Coeffs[i] * qtyMax[fi]
		}
		sort.Sort(sort.Reverse(sort.IntSlice(contributions)))

		top := n
		if top > len(contributions) {
			top = len(contributions)
		}
		sum := 0
		for _, v := range contributions[:top] {
			sum += v
		}
		out[i] = sum - cat.Bands[i].Min
	}
	return out
}

// ceilDiv returns ceil(a/b) for non-negative a and positive b using exact
// integer arithmetic; all quantities here are already scale-S integers, so
// floating point division would risk off-by-one ceilings near the exact
// sentinel boundary.
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
