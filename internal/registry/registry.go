// Package registry loads and validates risk pattern definitions and serves
// them to the matching pass as an atomically replaceable active set.
package registry

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"echoframe/internal/core"
	"echoframe/internal/logger"
)

// ValidationError describes why a pattern was rejected during load.
type ValidationError struct {
	PatternID string
	Reason    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pattern %s rejected: %s", e.PatternID, e.Reason)
}

// Registry holds the validated active pattern set. Reads see a consistent
// snapshot; Reload swaps the whole set at once so an in-flight matching pass
// never observes a partial view.
type Registry struct {
	mu       sync.RWMutex
	patterns []core.RiskPattern
}

// Load validates the given patterns and builds a registry from the ones that
// pass. Invalid patterns are excluded and reported; they never fail the load
// as a whole.
func Load(patterns []core.RiskPattern) (*Registry, []error) {
	r := &Registry{}
	errs := r.Reload(patterns)
	return r, errs
}

// Reload atomically replaces the active set with the valid subset of the
// given patterns and returns one error per rejected pattern.
func (r *Registry) Reload(patterns []core.RiskPattern) []error {
	var (
		valid []core.RiskPattern
		errs  []error
	)
	for _, p := range patterns {
		if err := Validate(p); err != nil {
			logger.Warn("Pattern rejected", map[string]interface{}{"pattern": p.ID, "reason": err.Error()})
			errs = append(errs, err)
			continue
		}
		valid = append(valid, p)
	}

	r.mu.Lock()
	r.patterns = valid
	r.mu.Unlock()
	return errs
}

// Validate checks the invariants a pattern must satisfy before it can match.
func Validate(p core.RiskPattern) error {
	if len(p.Keywords) == 0 {
		return &ValidationError{PatternID: p.ID, Reason: "keyword set is empty"}
	}
	for _, kw := range p.Keywords {
		if kw == "" {
			return &ValidationError{PatternID: p.ID, Reason: "keyword set contains an empty keyword"}
		}
	}
	if len(p.Template) == 0 {
		return &ValidationError{PatternID: p.ID, Reason: "scoring template is empty"}
	}
	total := 0.0
	for name, w := range p.Template {
		if w <= 0 {
			return &ValidationError{PatternID: p.ID, Reason: fmt.Sprintf("template weight %q is not positive", name)}
		}
		total += w
	}
	if total <= 0 {
		return &ValidationError{PatternID: p.ID, Reason: "template weights do not sum to a positive value"}
	}
	if _, err := core.ParseSector(string(p.Sector)); err != nil {
		return &ValidationError{PatternID: p.ID, Reason: err.Error()}
	}
	return nil
}

// ActivePatterns returns the active patterns, optionally filtered by sector.
// The returned slice is a copy; callers may hold it across a full pass.
func (r *Registry) ActivePatterns(sectors ...core.Sector) []core.RiskPattern {
	r.mu.RLock()
	snapshot := r.patterns
	r.mu.RUnlock()

	out := make([]core.RiskPattern, 0, len(snapshot))
	for _, p := range snapshot {
		if !p.Active {
			continue
		}
		if len(sectors) > 0 && !containsSector(sectors, p.Sector) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Len returns the number of loaded patterns, active or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.patterns)
}

func containsSector(sectors []core.Sector, s core.Sector) bool {
	for _, candidate := range sectors {
		if candidate == s {
			return true
		}
	}
	return false
}

// patternFile is the on-disk shape of the pattern definitions file.
type patternFile struct {
	Patterns []patternDef `yaml:"patterns" json:"patterns"`
}

type patternDef struct {
	ID          string              `yaml:"id" json:"id"`
	Name        string              `yaml:"name" json:"name"`
	Sector      string              `yaml:"sector" json:"sector"`
	PatternType string              `yaml:"pattern_type" json:"pattern_type"`
	Keywords    []string            `yaml:"keywords" json:"keywords"`
	Factors     map[string][]string `yaml:"factors" json:"factors"`
	EntityTypes []string            `yaml:"entity_types" json:"entity_types"`
	RiskLevel   string              `yaml:"risk_level" json:"risk_level"`
	Template    map[string]float64  `yaml:"template" json:"template"`
	Active      *bool               `yaml:"active" json:"active"`
}

// LoadFile reads pattern definitions from a YAML (or JSON, a YAML subset)
// file and builds a registry. Definitions with unknown enum values are
// rejected individually like any other invalid pattern.
func LoadFile(path string) (*Registry, []error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read pattern file: %w", err)
	}

	var file patternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse pattern file: %w", err)
	}

	patterns := make([]core.RiskPattern, 0, len(file.Patterns))
	var errs []error
	for _, def := range file.Patterns {
		p, err := def.toPattern()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		patterns = append(patterns, p)
	}

	r, loadErrs := Load(patterns)
	return r, append(errs, loadErrs...), nil
}

func (d patternDef) toPattern() (core.RiskPattern, error) {
	sector, err := core.ParseSector(d.Sector)
	if err != nil {
		return core.RiskPattern{}, &ValidationError{PatternID: d.ID, Reason: err.Error()}
	}
	level, err := core.ParseRiskLevel(d.RiskLevel)
	if err != nil {
		return core.RiskPattern{}, &ValidationError{PatternID: d.ID, Reason: err.Error()}
	}
	active := true
	if d.Active != nil {
		active = *d.Active
	}
	return core.RiskPattern{
		ID:          d.ID,
		Name:        d.Name,
		Sector:      sector,
		PatternType: d.PatternType,
		Keywords:    d.Keywords,
		Factors:     d.Factors,
		EntityTypes: d.EntityTypes,
		RiskLevel:   level,
		Template:    d.Template,
		Active:      active,
	}, nil
}
