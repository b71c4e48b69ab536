// Package core defines the domain entities shared across the risk engine.
package core

import (
	"fmt"
	"time"
)

// Sector identifies the industry a pattern or alert belongs to.
type Sector string

const (
	SectorEnergy         Sector = "energy"
	SectorPharma         Sector = "pharma"
	SectorMining         Sector = "mining"
	SectorManufacturing  Sector = "manufacturing"
	SectorFinance        Sector = "finance"
	SectorInfrastructure Sector = "infrastructure"
)

// ParseSector validates a sector string against the closed set.
func ParseSector(s string) (Sector, error) {
	switch Sector(s) {
	case SectorEnergy, SectorPharma, SectorMining, SectorManufacturing, SectorFinance, SectorInfrastructure:
		return Sector(s), nil
	}
	return "", fmt.Errorf("unknown sector %q", s)
}

// RiskLevel is the discrete severity assigned to patterns and alerts.
// Levels are ordered so they can be compared directly.
type RiskLevel int

const (
	RiskLevelLow RiskLevel = iota
	RiskLevelMedium
	RiskLevelHigh
	RiskLevelCritical
)

func (rl RiskLevel) String() string {
	switch rl {
	case RiskLevelLow:
		return "low"
	case RiskLevelMedium:
		return "medium"
	case RiskLevelHigh:
		return "high"
	case RiskLevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel validates a risk level string against the closed set.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch s {
	case "low":
		return RiskLevelLow, nil
	case "medium":
		return RiskLevelMedium, nil
	case "high":
		return RiskLevelHigh, nil
	case "critical":
		return RiskLevelCritical, nil
	}
	return RiskLevelLow, fmt.Errorf("unknown risk level %q", s)
}

// MaxRiskLevel returns the higher of two levels.
func MaxRiskLevel(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

// SourceType classifies how a source's articles are obtained.
type SourceType string

const (
	SourceTypeRSS       SourceType = "rss"
	SourceTypeAPI       SourceType = "api"
	SourceTypeScraper   SourceType = "scraper"
	SourceTypeSynthetic SourceType = "synthetic"
)

// ParseSourceType validates a source type string against the closed set.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceTypeRSS, SourceTypeAPI, SourceTypeScraper, SourceTypeSynthetic:
		return SourceType(s), nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// Source describes where articles come from.
type Source struct {
	ID         string     `json:"id"`          // Unique identifier for the source
	Name       string     `json:"name"`        // Human-readable name
	URL        string     `json:"url"`         // Source URL
	SourceType SourceType `json:"source_type"` // How articles from this source are obtained
	Country    string     `json:"country"`     // ISO country code (default MEX)
	State      string     `json:"state"`       // State/region covered by the source
	City       string     `json:"city"`        // City covered by the source
	Active     bool       `json:"active"`      // Whether the source is polled
}

// Entity is a named entity extracted from an article by upstream NLP.
type Entity struct {
	Type       string  `json:"type"`       // Entity type label (e.g. GOVERNMENT_AGENCY, ORG)
	Text       string  `json:"text"`       // Surface text of the entity
	Confidence float64 `json:"confidence"` // Extraction confidence in [0,1]
	StartPos   int     `json:"start_pos"`  // Byte offset of the entity in the body
	EndPos     int     `json:"end_pos"`    // End byte offset of the entity in the body
}

// Article is an ingested news item. The engine treats it as read-only input;
// entities are derived metadata appended by upstream processing.
type Article struct {
	ID          string     `json:"id"`           // Unique identifier for the article
	SourceID    string     `json:"source_id"`    // Identifier of the originating Source
	SourceType  SourceType `json:"source_type"`  // Copied from the source at ingestion time
	Title       string     `json:"title"`        // Article title
	Body        string     `json:"body"`         // Full article text
	Summary     string     `json:"summary"`      // Optional upstream summary
	URL         string     `json:"url"`          // Canonical article URL
	PublishedAt time.Time  `json:"published_at"` // Publication timestamp
	Language    string     `json:"language"`     // Language tag (default "es")
	Entities    []Entity   `json:"entities"`     // Precomputed entities, may be empty
	CreatedAt   time.Time  `json:"created_at"`   // When the article was ingested
}

// RiskPattern is a configured detection rule for one category of risk.
type RiskPattern struct {
	ID          string              `json:"id"`           // Unique identifier for the pattern
	Name        string              `json:"name"`         // Human-readable name
	Sector      Sector              `json:"sector"`       // Industry the pattern watches
	PatternType string              `json:"pattern_type"` // Free-form classifier (regulatory, incident, social, financial)
	Keywords    []string            `json:"keywords"`     // Trigger keywords/phrases, must be non-empty
	Factors     map[string][]string `json:"factors"`      // Named factor signals and their trigger terms
	EntityTypes []string            `json:"entity_types"` // Entity types that count for proximity signals
	RiskLevel   RiskLevel           `json:"risk_level"`   // Base severity; alerts never report lower
	Template    map[string]float64  `json:"template"`     // Signal name -> scoring weight
	Active      bool                `json:"active"`       // Whether the pattern participates in matching
}

// Signal is one discrete piece of evidence contributing to a match.
type Signal struct {
	Name     string  `json:"name"`     // Signal name, keys into the pattern template
	Strength float64 `json:"strength"` // Raw strength in [0,1]
}

// MatchCandidate is the ephemeral output of matching one article against one
// pattern. It exists only within a single evaluation pass.
type MatchCandidate struct {
	ArticleID string   `json:"article_id"`
	PatternID string   `json:"pattern_id"`
	Signals   []Signal `json:"signals"` // Deduplicated by name, max strength kept
	Keywords  []string `json:"keywords"` // Keywords that actually hit
	Excerpt   string   `json:"excerpt"` // Short fragment around the first hit
}

// ScoredCandidate couples a candidate with its computed score and level.
type ScoredCandidate struct {
	Candidate MatchCandidate
	Article   *Article
	Pattern   *RiskPattern
	RiskScore float64
	RiskLevel RiskLevel
}

// AlertDetails is the structured payload persisted with an alert.
type AlertDetails struct {
	PatternType     string   `json:"pattern_type"`
	KeywordsMatched []string `json:"keywords_matched"`
	Signals         []Signal `json:"signals"`
	Excerpt         string   `json:"excerpt,omitempty"`
	SourceID        string   `json:"source_id,omitempty"`
}

// RiskAlert is the persisted outcome of an accepted candidate. At most one
// alert exists per (article, pattern) pair.
type RiskAlert struct {
	ID            string       `json:"id"`              // Unique identifier for the alert
	ArticleID     string       `json:"article_id"`      // Article the alert was raised for
	RiskPatternID string       `json:"risk_pattern_id"` // Pattern that matched
	RiskScore     float64      `json:"risk_score"`      // Normalized score in [0,1]
	RiskLevel     RiskLevel    `json:"risk_level"`      // Severity after applying the pattern floor
	Sector        Sector       `json:"sector"`          // Copied from the pattern at alert time
	Summary       string       `json:"summary"`         // Short human-readable description
	Details       AlertDetails `json:"details"`         // Contributing signals and excerpt
	IsSent        bool         `json:"is_sent"`         // Whether downstream delivery picked it up
	CreatedAt     time.Time    `json:"created_at"`      // When the alert was persisted
}

// Decision is the deduplicator's verdict for a scored candidate.
type Decision int

const (
	Accept Decision = iota
	SuppressExactDuplicate
	SuppressNearDuplicate
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case SuppressExactDuplicate:
		return "suppress_exact_duplicate"
	case SuppressNearDuplicate:
		return "suppress_near_duplicate"
	default:
		return "unknown"
	}
}

// Suppression is the audit record written for every suppress decision.
type Suppression struct {
	ID        string    `json:"id"`
	ArticleID string    `json:"article_id"`
	PatternID string    `json:"pattern_id"`
	Reason    string    `json:"reason"` // Decision string of the suppress outcome
	CreatedAt time.Time `json:"created_at"`
}
