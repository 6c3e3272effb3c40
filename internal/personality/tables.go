package personality

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/moodclaw/internal/classifier"
)

// CategorySpec is one interaction category: the keywords that detect it and
// the per-trait deltas applied when it is detected.
type CategorySpec struct {
	Name     string            `yaml:"name"`
	Keywords []string          `yaml:"keywords"`
	Deltas   map[Trait]float64 `yaml:"deltas"`
}

// Tables is the category table. It is built once at startup and never
// mutated afterwards.
type Tables struct {
	Categories []CategorySpec `yaml:"categories"`
}

func DefaultTables() *Tables {
	return &Tables{Categories: []CategorySpec{
		{
			Name: "friendly",
			Keywords: []string{
				"thank", "appreciate", "love you", "you're great", "you're the best",
				"buddy", "good job", "well done", "hugs", "sweet of you",
			},
			Deltas: map[Trait]float64{Warmth: 3, Patience: 1, Sarcasm: -1},
		},
		{
			Name: "hostile",
			Keywords: []string{
				"stupid", "idiot", "shut up", "hate you", "dumb", "useless",
				"annoying", "moron", "screw you", "pathetic", "loser",
			},
			Deltas: map[Trait]float64{Warmth: -2, Sarcasm: 2, Patience: -2},
		},
		{
			Name: "formal",
			Keywords: []string{
				"please", "kindly", "regards", "sincerely", "would you",
				"could you", "pardon", "furthermore", "therefore",
			},
			Deltas: map[Trait]float64{Formality: 3, Humor: -1},
		},
		{
			Name: "casual",
			Keywords: []string{
				"lol", "bruh", "dude", "gonna", "wanna", "yeah", "nah", "tbh", "idk",
			},
			Deltas: map[Trait]float64{Formality: -2, Humor: 1},
		},
		{
			Name: "inquisitive",
			Keywords: []string{
				"why", "how come", "how do", "how does", "what if", "explain", "curious", "wonder", "?",
			},
			Deltas: map[Trait]float64{Patience: 2, Warmth: 1},
		},
		{
			Name: "joking",
			Keywords: []string{
				"haha", "hehe", "joke", "kidding", "funny", "jk", "lmao", "rofl",
			},
			Deltas: map[Trait]float64{Humor: 3, Sarcasm: 1, Formality: -1},
		},
	}}
}

// LoadTables reads a YAML category table. An empty path or a missing file
// yields DefaultTables.
func LoadTables(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultTables(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}

	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Marshal renders the table as YAML.
func (t *Tables) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}

// Validate rejects empty or duplicate category names, deltas on unknown
// traits and keywords shared between categories.
func (t *Tables) Validate() error {
	if len(t.Categories) == 0 {
		return errors.New("tables: no categories")
	}
	var errs []error
	names := map[string]bool{}
	owner := map[string]string{}
	for _, c := range t.Categories {
		if c.Name == "" {
			errs = append(errs, errors.New("tables: category without name"))
			continue
		}
		if names[c.Name] {
			errs = append(errs, fmt.Errorf("tables: duplicate category %q", c.Name))
		}
		names[c.Name] = true
		for trait := range c.Deltas {
			if _, ok := traitSpecs[trait]; !ok {
				errs = append(errs, fmt.Errorf("tables: category %q: %w %q", c.Name, ErrUnknownTrait, trait))
			}
		}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if prev, ok := owner[kw]; ok && prev != c.Name {
				errs = append(errs, fmt.Errorf("tables: keyword %q in both %q and %q", kw, prev, c.Name))
			}
			owner[kw] = c.Name
		}
	}
	return errors.Join(errs...)
}

// ClassifierCategories returns the keyword sets in table order.
func (t *Tables) ClassifierCategories() []classifier.Category {
	out := make([]classifier.Category, len(t.Categories))
	for i, c := range t.Categories {
		out[i] = classifier.Category{Name: c.Name, Keywords: c.Keywords}
	}
	return out
}

// Deltas returns the trait deltas for a category, or nil if unknown.
func (t *Tables) Deltas(category string) map[Trait]float64 {
	for _, c := range t.Categories {
		if c.Name == category {
			return c.Deltas
		}
	}
	return nil
}
