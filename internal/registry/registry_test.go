package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"echoframe/internal/core"
)

func validPattern(id string, sector core.Sector) core.RiskPattern {
	return core.RiskPattern{
		ID:        id,
		Name:      "test pattern",
		Sector:    sector,
		Keywords:  []string{"suspensión de permiso"},
		RiskLevel: core.RiskLevelHigh,
		Template:  map[string]float64{"keyword_hit": 1.0},
		Active:    true,
	}
}

func TestLoadRejectsInvalidPatterns(t *testing.T) {
	noKeywords := validPattern("no-keywords", core.SectorEnergy)
	noKeywords.Keywords = nil

	badWeight := validPattern("bad-weight", core.SectorEnergy)
	badWeight.Template = map[string]float64{"keyword_hit": -1.0}

	reg, errs := Load([]core.RiskPattern{
		validPattern("ok", core.SectorEnergy),
		noKeywords,
		badWeight,
	})

	if len(errs) != 2 {
		t.Fatalf("Expected 2 validation errors, got %d: %v", len(errs), errs)
	}
	for _, err := range errs {
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Expected ValidationError, got %T", err)
		}
	}

	active := reg.ActivePatterns()
	if len(active) != 1 || active[0].ID != "ok" {
		t.Fatalf("Expected only the valid pattern to be active, got %v", active)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(validPattern("ok", core.SectorPharma)); err != nil {
		t.Errorf("Valid pattern rejected: %v", err)
	}

	empty := validPattern("empty-kw", core.SectorPharma)
	empty.Keywords = []string{""}
	if err := Validate(empty); err == nil {
		t.Error("Expected rejection of empty keyword")
	}

	noTemplate := validPattern("no-template", core.SectorPharma)
	noTemplate.Template = nil
	if err := Validate(noTemplate); err == nil {
		t.Error("Expected rejection of empty template")
	}

	badSector := validPattern("bad-sector", "general")
	if err := Validate(badSector); err == nil {
		t.Error("Expected rejection of unknown sector")
	}
}

func TestActivePatternsSectorFilter(t *testing.T) {
	inactive := validPattern("inactive", core.SectorEnergy)
	inactive.Active = false

	reg, errs := Load([]core.RiskPattern{
		validPattern("energy-1", core.SectorEnergy),
		validPattern("pharma-1", core.SectorPharma),
		inactive,
	})
	if len(errs) != 0 {
		t.Fatalf("Unexpected validation errors: %v", errs)
	}

	if got := len(reg.ActivePatterns()); got != 2 {
		t.Errorf("Expected 2 active patterns, got %d", got)
	}

	energy := reg.ActivePatterns(core.SectorEnergy)
	if len(energy) != 1 || energy[0].ID != "energy-1" {
		t.Errorf("Sector filter returned %v", energy)
	}
}

func TestReloadReplacesActiveSet(t *testing.T) {
	reg, _ := Load([]core.RiskPattern{validPattern("old", core.SectorEnergy)})

	snapshot := reg.ActivePatterns()

	if errs := reg.Reload([]core.RiskPattern{validPattern("new", core.SectorFinance)}); len(errs) != 0 {
		t.Fatalf("Unexpected reload errors: %v", errs)
	}

	// The pre-reload snapshot is untouched; new reads see the new set.
	if len(snapshot) != 1 || snapshot[0].ID != "old" {
		t.Errorf("Snapshot mutated by reload: %v", snapshot)
	}
	active := reg.ActivePatterns()
	if len(active) != 1 || active[0].ID != "new" {
		t.Errorf("Reload did not replace active set: %v", active)
	}
}

func TestLoadFile(t *testing.T) {
	content := `patterns:
  - id: energy-regulatory
    name: Suspensión regulatoria
    sector: energy
    pattern_type: regulatory
    keywords: ["SENER", "suspensión de permiso"]
    risk_level: high
    template:
      keyword_hit: 1.0
  - id: bad-sector
    name: Patrón inválido
    sector: general
    keywords: ["algo"]
    risk_level: low
    template:
      keyword_hit: 1.0
`
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, rejected, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(rejected) != 1 {
		t.Errorf("Expected 1 rejected pattern, got %d: %v", len(rejected), rejected)
	}

	active := reg.ActivePatterns()
	if len(active) != 1 || active[0].ID != "energy-regulatory" {
		t.Fatalf("Expected energy-regulatory to be active, got %v", active)
	}
	if active[0].RiskLevel != core.RiskLevelHigh {
		t.Errorf("Risk level not parsed: %v", active[0].RiskLevel)
	}
	if !active[0].Active {
		t.Error("Pattern without explicit active flag should default to active")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing pattern file")
	}
}
