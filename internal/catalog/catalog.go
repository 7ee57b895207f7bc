// Package catalog parses the two normalized tabular resources (nutrient
// bands and food coefficients) into the in-memory Catalog the rest of the
// system treats as read-only for the life of a process.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
)

// ExpectedScale is the integer multiplier every ingested nutrient amount is
// assumed to already carry: three decimal places of precision.
const ExpectedScale = 1000

// Food is a single catalog entry: a stable id, a display label, and a
// K-length vector of non-negative, scale-S nutrient coefficients.
type Food struct {
	ID     int
	Label  string
	Coeffs []int
}

// NutrientBand is the lower/upper admissible range for one nutrient, both
// scaled by S. A non-finite upper bound is represented by LargeSentinel.
type NutrientBand struct {
	Name string
	Min  int
	Max  int
	Unit string
}

// Catalog is the ordered set of Foods plus the K-vector of NutrientBands that
// every Food's Coeffs is indexed against.
type Catalog struct {
	Foods []Food
	Bands []NutrientBand
}

// K returns the number of nutrient columns.
func (c *Catalog) K() int { return len(c.Bands) }

// LargeSentinel stands in for "unbounded" wherever a genuinely non-finite
// upper bound or an all-zero-coefficient food's qty_max would otherwise be
// infinite. Grounded on the original's own MAX_NUMBER constant.
const LargeSentinel = 5_000_000

// Load reads the requirements table (bandsPath) and the food table
// (foodsPath) and produces a validated Catalog. Values are scaled by scale
// and truncated to integers on ingest; scale is expected to equal
// ExpectedScale (use ValidateScale to confirm and log that invariant).
func Load(bandsPath, foodsPath string, scale int) (*Catalog, error) {
	bandsFile, err := os.Open(bandsPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening bands table: %w", err)
	}
	defer bandsFile.Close()

	bands, err := parseBands(bandsFile, scale)
	if err != nil {
		return nil, fmt.Errorf("catalog: parsing bands table: %w", err)
	}

	foodsFile, err := os.Open(foodsPath)
	if err != nil {
		return nil, fmt.Errorf("catalog: opening food table: %w", err)
	}
	defer foodsFile.Close()

	foods, foodColumnNames, err := parseFoods(foodsFile, scale, len(bands))
	if err != nil {
		return nil, fmt.Errorf("catalog: parsing food table: %w", err)
	}

	for i, band := range bands {
		if i < len(foodColumnNames) && foodColumnNames[i] != "" && foodColumnNames[i] != band.Name {
			return nil, fmt.Errorf("catalog: nutrient column order mismatch at position %d: bands table says %q, food table says %q",
				i, band.Name, foodColumnNames[i])
		}
	}

	return &Catalog{Foods: foods, Bands: bands}, nil
}

// ValidateScale asserts that scale matches ExpectedScale. The original
// implementation's calculate_scale() merely asserted this in a notebook; here
// it is a first-class, loggable error. Load does not call it; the check runs
// only where a caller invokes it.
func ValidateScale(scale int) error {
	if scale != ExpectedScale {
		return fmt.Errorf("catalog: scale factor %d does not match expected %d", scale, ExpectedScale)
	}
	return nil
}

func parseBands(r io.Reader, scale int) ([]NutrientBand, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 4 {
		return nil, fmt.Errorf("expected at least 4 columns (name, min, max, unit), got %d", len(header))
	}

	var bands []NutrientBand
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if len(row) < 4 {
			return nil, fmt.Errorf("row has %d columns, want at least 4", len(row))
		}
		min, err := scaledInt(row[1], scale)
		if err != nil {
			return nil, fmt.Errorf("parsing min for nutrient %q: %w", row[0], err)
		}
		max, err := scaledUpperBound(row[2], scale)
		if err != nil {
			return nil, fmt.Errorf("parsing max for nutrient %q: %w", row[0], err)
		}
		if min >= max {
			return nil, fmt.Errorf("nutrient %q: min %d must be strictly less than max %d", row[0], min, max)
		}
		bands = append(bands, NutrientBand{Name: row[0], Min: min, Max: max, Unit: row[3]})
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("bands table has no rows")
	}
	return bands, nil
}

func parseFoods(r io.Reader, scale int, k int) ([]Food, []string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header row: %w", err)
	}
	if len(header) != 2+k {
		return nil, nil, fmt.Errorf("header has %d columns, want %d (id, label, %d nutrients)", len(header), 2+k, k)
	}
	columnNames := header[2:]

	// Second header-like row lists units; consumed and discarded here since
	// unit homogeneity is enforced at ingestion, not re-checked in the core.
	if _, err := cr.Read(); err != nil {
		return nil, nil, fmt.Errorf("reading unit row: %w", err)
	}

	var foods []Food
	seen := make(map[int]bool)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading row: %w", err)
		}
		if len(row) != 2+k {
			return nil, nil, fmt.Errorf("row has %d columns, want %d", len(row), 2+k)
		}
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, nil, fmt.Errorf("parsing food id %q: %w", row[0], err)
		}
		if seen[id] {
			return nil, nil, fmt.Errorf("duplicate food id %d", id)
		}
		seen[id] = true

		coeffs := make([]int, k)
		for i := 0; i < k; i++ {
			v, err := scaledInt(row[2+i], scale)
			if err != nil {
				return nil, nil, fmt.Errorf("parsing coefficient %d for food %d: %w", i, id, err)
			}
			if v < 0 {
				return nil, nil, fmt.Errorf("food %d: coefficient %d is negative (%d)", id, i, v)
			}
			coeffs[i] = v
		}
		foods = append(foods, Food{ID: id, Label: row[1], Coeffs: coeffs})
	}
	if len(foods) == 0 {
		return nil, nil, fmt.Errorf("food table has no rows")
	}
	return foods, columnNames, nil
}

func scaledInt(field string, scale int) (int, error) {
	f, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	return int(math.Trunc(f * float64(scale))), nil
}

// scaledUpperBound treats an empty field or a non-finite value (e.g. "inf")
// as the conventional large sentinel rather than a parse error.
func scaledUpperBound(field string, scale int) (int, error) {
	if field == "" {
		return LargeSentinel, nil
	}
	f, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return 0, err
	}
	if math.IsInf(f, 1) {
		return LargeSentinel, nil
	}
	return int(math.Trunc(f * float64(scale))), nil
}
