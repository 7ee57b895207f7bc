package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cardinality != 3 {
		t.Errorf("expected default cardinality 3, got %d", cfg.Cardinality)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.JobTimeout != time.Hour {
		t.Errorf("expected default job timeout 1h, got %s", cfg.JobTimeout)
	}
}

func TestLoad_OverridesWinOverDefaults(t *testing.T) {
	cfg, err := Load("", map[string]interface{}{
		"cardinality": 7,
		"workers":     2,
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cardinality != 7 {
		t.Errorf("expected overridden cardinality 7, got %d", cfg.Cardinality)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected overridden workers 2, got %d", cfg.Workers)
	}
}

func TestLoad_RejectsNonPositiveCardinality(t *testing.T) {
	_, err := Load("", map[string]interface{}{"cardinality": -1})
	if err == nil {
		t.Fatalf("expected error for negative cardinality")
	}
}

func TestLoad_ZeroWorkersOverrideFallsBackToDefault(t *testing.T) {
	_, err := Load("", map[string]interface{}{"workers": 0, "cardinality": 3})
	if err != nil {
		t.Fatalf("Load should fall back to default workers, got error: %v", err)
	}
}
