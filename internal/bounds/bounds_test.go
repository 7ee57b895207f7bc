package bounds

import (
	"testing"

	"github.com/nutrisolve/nutrisolve/internal/catalog"
)

func identityCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Bands: []catalog.NutrientBand{
			{Name: "n1", Min: 1000, Max: 10000},
			{Name: "n2", Min: 1000, Max: 10000},
			{Name: "n3", Min: 1000, Max: 10000},
		},
		Foods: []catalog.Food{
			{ID: 1, Label: "A", Coeffs: []int{1000, 0, 0}},
			{ID: 2, Label: "B", Coeffs: []int{0, 1000, 0}},
			{ID: 3, Label: "C", Coeffs: []int{0, 0, 1000}},
		},
	}
}

func TestQtyMax_IdentityScenario(t *testing.T) {
	cat := identityCatalog()
	qtyMax := QtyMax(cat)
	for i, q := range qtyMax {
		if q != 10 {
			t.Errorf("food %d: expected qty_max 10, got %d", i, q)
		}
	}
}

func TestQtyMax_AllZeroCoefficientUsesSentinel(t *testing.T) {
	cat := &catalog.Catalog{
		Bands: []catalog.NutrientBand{{Name: "n1", Min: 1, Max: 10}},
		Foods: []catalog.Food{{ID: 1, Label: "water", Coeffs: []int{0}}},
	}
	qtyMax := QtyMax(cat)
	if qtyMax[0] != LargeSentinel {
		t.Fatalf("expected sentinel qty_max, got %d", qtyMax[0])
	}
}

func TestQtyMax_CeilingRoundsUp(t *testing.T) {
	cat := &catalog.Catalog{
		Bands: []catalog.NutrientBand{{Name: "n1", Min: 1, Max: 10}},
		Foods: []catalog.Food{{ID: 1, Label: "dense", Coeffs: []int{3}}},
	}
	qtyMax := QtyMax(cat)
	// ceil(10/3) = 4
	if qtyMax[0] != 4 {
		t.Fatalf("expected qty_max 4, got %d", qtyMax[0])
	}
}

func TestErrMax_IdentityScenario(t *testing.T) {
	cat := identityCatalog()
	qtyMax := QtyMax(cat)
	errMax := ErrMax(cat, qtyMax, 3)
	// For nutrient 0: only food A contributes (1000*10=10000); top-3 sum is
	// just that single nonzero contribution. err_max = 10000 - min(1000) = 9000.
	for i, e := range errMax {
		if e != 9000 {
			t.Errorf("nutrient %d: expected err_max 9000, got %d", i, e)
		}
	}
}
