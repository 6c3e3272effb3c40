package classifier

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var testCategories = []Category{
	{Name: "friendly", Keywords: []string{"thanks", "Buddy"}},
	{Name: "hostile", Keywords: []string{"idiot", "shut up", "hate"}},
	{Name: "inquisitive", Keywords: []string{"why", "how"}},
}

func TestClassify(t *testing.T) {
	c := New(testCategories, Neutral)

	tests := []struct {
		name string
		text string
		want map[string]float64
	}{
		{"no match is empty", "the weather today", map[string]float64{}},
		{"one hit is a third", "thanks", map[string]float64{"friendly": 1.0 / 3}},
		{"case insensitive", "THANKS buddy", map[string]float64{"friendly": 2.0 / 3}},
		{"three hits saturate", "hate hate hate", map[string]float64{"hostile": 1}},
		{"more hits still cap at one", "idiot idiot idiot idiot, shut up", map[string]float64{"hostile": 1}},
		{"substring match", "whyyy", map[string]float64{"inquisitive": 1.0 / 3}},
		{"opposing categories both present", "thanks idiot", map[string]float64{"friendly": 1.0 / 3, "hostile": 1.0 / 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.text)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Classify(%q) (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestClassify_SentimentBoost(t *testing.T) {
	tests := []struct {
		name     string
		polarity float64
		text     string
		want     map[string]float64
	}{
		{"positive creates friendly", 0.5, "nice day", map[string]float64{"friendly": 0.5}},
		{"positive stacks past one", 0.9, "thanks thanks thanks", map[string]float64{"friendly": 1.5}},
		{"negative boosts hostile", -0.7, "hate", map[string]float64{"hostile": 1.0/3 + 0.5}},
		{"weak polarity ignored", 0.49, "nice day", map[string]float64{}},
		{"weak negative ignored", -0.49, "meh", map[string]float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.polarity
			c := New(testCategories, AnalyzerFunc(func(string) float64 { return p }))
			got := c.Classify(tt.text)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestNew_DefaultsToLexicon(t *testing.T) {
	c := New(nil, nil)
	got := c.Classify("you are a stupid useless idiot")
	if got[Hostile] != 0.5 {
		t.Errorf("hostile = %v, want 0.5 from lexicon boost", got[Hostile])
	}
}

func TestLexicon_Polarity(t *testing.T) {
	l := NewLexicon()

	tests := []struct {
		text  string
		check func(float64) bool
		desc  string
	}{
		{"", func(p float64) bool { return p == 0 }, "== 0"},
		{"hello there", func(p float64) bool { return p == 0 }, "== 0"},
		{"I love this, thank you so much!", func(p float64) bool { return p >= 0.5 }, ">= 0.5"},
		{"you are a stupid useless idiot", func(p float64) bool { return p <= -0.5 }, "<= -0.5"},
		{"not good", func(p float64) bool { return p < 0 }, "< 0"},
		{"this is not bad", func(p float64) bool { return p > 0 }, "> 0"},
	}
	for _, tt := range tests {
		p := l.Polarity(tt.text)
		if !tt.check(p) {
			t.Errorf("Polarity(%q) = %v, want %s", tt.text, p, tt.desc)
		}
		if p < -1 || p > 1 {
			t.Errorf("Polarity(%q) = %v out of range", tt.text, p)
		}
	}
}

func TestLexicon_IntensifierAndExclaim(t *testing.T) {
	l := NewLexicon()
	if !(l.Polarity("very good") > l.Polarity("good")) {
		t.Error("intensifier should raise polarity")
	}
	if !(l.Polarity("good!!") > l.Polarity("good")) {
		t.Error("exclamation should raise polarity")
	}
	if l.Polarity("good") != l.Polarity("good") {
		t.Error("polarity must be deterministic")
	}
}
