// Package matcher evaluates articles against active risk patterns and emits
// raw match candidates with per-signal strengths.
package matcher

import (
	"strings"

	"echoframe/internal/core"
)

// Signal names produced by the matcher. Factor signals use the factor's own
// name from the pattern definition.
const (
	SignalKeywordHit      = "keyword_hit"
	SignalEntityProximity = "entity_proximity"
)

// Match strengths: full-phrase hits count 1.0, stemmed/partial hits 0.6.
const (
	exactStrength   = 1.0
	partialStrength = 0.6
)

// Excerpt spans this many tokens before and after the first keyword hit.
const (
	excerptBefore = 8
	excerptAfter  = 12
)

// boundary separates the title and body token streams. Its normalized forms
// can never equal a real word token, so no phrase window crosses it.
var boundary = token{Norm: "\x00", Stem: "\x00"}

// Matcher scans article text for pattern triggers. Matching is pure and
// synchronous; a Matcher is safe for concurrent use.
type Matcher struct {
	proximityWindow int
}

// New creates a matcher. proximityWindow is the maximum token distance
// between an entity and a keyword hit for an entity proximity signal.
func New(proximityWindow int) *Matcher {
	if proximityWindow < 1 {
		proximityWindow = 10
	}
	return &Matcher{proximityWindow: proximityWindow}
}

// Evaluate matches one article against the given patterns. Patterns with zero
// triggered signals produce no candidate.
func (m *Matcher) Evaluate(article *core.Article, patterns []core.RiskPattern) []core.MatchCandidate {
	if article == nil || len(patterns) == 0 {
		return nil
	}

	titleTokens := tokenize(article.Title)
	bodyTokens := tokenize(article.Body)
	tokens := make([]token, 0, len(titleTokens)+len(bodyTokens)+1)
	tokens = append(tokens, titleTokens...)
	if len(titleTokens) > 0 && len(bodyTokens) > 0 {
		// Phrases must not span the title/body boundary.
		tokens = append(tokens, boundary)
	}
	tokens = append(tokens, bodyTokens...)
	bodyOffset := len(tokens) - len(bodyTokens)

	var candidates []core.MatchCandidate
	for i := range patterns {
		if c, ok := m.evaluatePattern(article, &patterns[i], tokens, bodyTokens, bodyOffset); ok {
			candidates = append(candidates, c)
		}
	}
	return candidates
}

func (m *Matcher) evaluatePattern(article *core.Article, pattern *core.RiskPattern, tokens, bodyTokens []token, bodyOffset int) (core.MatchCandidate, bool) {
	signals := map[string]float64{}
	var (
		matched  []string
		hitPos   []int
		firstHit = -1
	)

	for _, keyword := range pattern.Keywords {
		strength, pos, ok := matchPhrase(tokens, keyword)
		if !ok {
			continue
		}
		recordSignal(signals, SignalKeywordHit, strength)
		matched = append(matched, keyword)
		hitPos = append(hitPos, pos)
		if firstHit < 0 || pos < firstHit {
			firstHit = pos
		}
	}

	for factor, terms := range pattern.Factors {
		for _, term := range terms {
			strength, pos, ok := matchPhrase(tokens, term)
			if !ok {
				continue
			}
			recordSignal(signals, factor, strength)
			hitPos = append(hitPos, pos)
		}
	}

	if len(hitPos) > 0 && len(pattern.EntityTypes) > 0 {
		if strength, ok := m.entityProximity(article, pattern, bodyTokens, bodyOffset, hitPos); ok {
			recordSignal(signals, SignalEntityProximity, strength)
		}
	}

	if len(signals) == 0 {
		return core.MatchCandidate{}, false
	}

	return core.MatchCandidate{
		ArticleID: article.ID,
		PatternID: pattern.ID,
		Signals:   flattenSignals(signals),
		Keywords:  matched,
		Excerpt:   excerpt(tokens, firstHit),
	}, true
}

// entityProximity reports the strongest proximity signal between a watched
// entity and any keyword/factor hit. Strength is the entity's confidence.
func (m *Matcher) entityProximity(article *core.Article, pattern *core.RiskPattern, bodyTokens []token, bodyOffset int, hitPos []int) (float64, bool) {
	best := 0.0
	found := false
	for _, entity := range article.Entities {
		if !watchedType(pattern.EntityTypes, entity.Type) {
			continue
		}
		entityPos, ok := entityTokenIndex(bodyTokens, entity.StartPos)
		if !ok {
			continue
		}
		entityPos += bodyOffset
		for _, pos := range hitPos {
			if abs(entityPos-pos) <= m.proximityWindow {
				if entity.Confidence > best {
					best = entity.Confidence
					found = true
				}
				break
			}
		}
	}
	return best, found
}

// matchPhrase looks for a multi-token phrase in the token stream. Exact
// normalized matches win over stemmed ones; the position of the first hit of
// the winning kind is returned.
func matchPhrase(tokens []token, phrase string) (float64, int, bool) {
	words := tokenize(phrase)
	if len(words) == 0 || len(tokens) < len(words) {
		return 0, 0, false
	}

	firstPartial := -1
	for i := 0; i+len(words) <= len(tokens); i++ {
		exact, partial := true, true
		for j := range words {
			if tokens[i+j].Norm != words[j].Norm {
				exact = false
			}
			if tokens[i+j].Stem != words[j].Stem {
				partial = false
				break
			}
		}
		if exact {
			return exactStrength, i, true
		}
		if partial && firstPartial < 0 {
			firstPartial = i
		}
	}
	if firstPartial >= 0 {
		return partialStrength, firstPartial, true
	}
	return 0, 0, false
}

// recordSignal keeps the maximum strength per signal name so repeated keyword
// density alone cannot inflate the score.
func recordSignal(signals map[string]float64, name string, strength float64) {
	if strength > signals[name] {
		signals[name] = strength
	}
}

func flattenSignals(signals map[string]float64) []core.Signal {
	out := make([]core.Signal, 0, len(signals))
	for name, strength := range signals {
		out = append(out, core.Signal{Name: name, Strength: strength})
	}
	return out
}

// entityTokenIndex maps an entity byte offset to its body token index.
func entityTokenIndex(bodyTokens []token, startPos int) (int, bool) {
	for i, tok := range bodyTokens {
		if tok.Start >= startPos {
			return i, true
		}
	}
	return 0, false
}

// excerpt reassembles the original tokens around the first hit.
func excerpt(tokens []token, hit int) string {
	if hit < 0 || len(tokens) == 0 {
		return ""
	}
	from := hit - excerptBefore
	if from < 0 {
		from = 0
	}
	to := hit + excerptAfter
	if to > len(tokens) {
		to = len(tokens)
	}
	words := make([]string, 0, to-from)
	for _, tok := range tokens[from:to] {
		if tok.Raw == "" {
			continue
		}
		words = append(words, tok.Raw)
	}
	return strings.Join(words, " ")
}

func watchedType(types []string, entityType string) bool {
	for _, t := range types {
		if strings.EqualFold(t, entityType) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
