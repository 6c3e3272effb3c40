// Package classifier maps message text to interaction categories with a
// strength per category.
package classifier

import (
	"strings"
)

const (
	Friendly = "friendly"
	Hostile  = "hostile"
)

const (
	// fullStrengthMatches keyword hits give a category strength of 1.
	fullStrengthMatches = 3.0
	boostThreshold      = 0.5
	sentimentBoost      = 0.5
)

// Category is a named keyword set. Keywords are matched as case-insensitive
// substrings.
type Category struct {
	Name     string
	Keywords []string
}

// Analyzer scores the overall sentiment of a text in [-1, 1]. It must be
// deterministic.
type Analyzer interface {
	Polarity(text string) float64
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(text string) float64

func (f AnalyzerFunc) Polarity(text string) float64 { return f(text) }

// Neutral is an Analyzer that never boosts.
var Neutral = AnalyzerFunc(func(string) float64 { return 0 })

type Classifier struct {
	categories []Category
	analyzer   Analyzer
}

// New returns a classifier over categories. A nil analyzer selects the
// built-in lexicon scorer.
func New(categories []Category, analyzer Analyzer) *Classifier {
	if analyzer == nil {
		analyzer = NewLexicon()
	}
	cats := make([]Category, len(categories))
	for i, c := range categories {
		kws := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		cats[i] = Category{Name: c.Name, Keywords: kws}
	}
	return &Classifier{categories: cats, analyzer: analyzer}
}

// Classify returns the strength of every category the text matches. The
// result is sparse: categories without keyword hits or a sentiment boost are
// absent. Strength is min(1, hits/3); a strong positive or negative polarity
// adds 0.5 to friendly or hostile on top of that, so those two may exceed 1.
func (c *Classifier) Classify(text string) map[string]float64 {
	out := make(map[string]float64)
	lower := strings.ToLower(text)

	for _, cat := range c.categories {
		hits := 0
		for _, kw := range cat.Keywords {
			hits += strings.Count(lower, kw)
		}
		if hits > 0 {
			out[cat.Name] = min(1, float64(hits)/fullStrengthMatches)
		}
	}

	switch p := c.analyzer.Polarity(text); {
	case p >= boostThreshold:
		out[Friendly] += sentimentBoost
	case p <= -boostThreshold:
		out[Hostile] += sentimentBoost
	}
	return out
}
