// Package personality holds per-user trait vectors, adapts them to classified
// messages, decays them toward baseline and turns deviations into prompt
// directives.
package personality

import (
	"errors"
	"fmt"
	"strings"
)

type Trait string

const (
	Warmth    Trait = "warmth"
	Humor     Trait = "humor"
	Sarcasm   Trait = "sarcasm"
	Formality Trait = "formality"
	Patience  Trait = "patience"
)

const (
	MinValue = 0.0
	MaxValue = 100.0
)

var (
	ErrUnknownTrait    = errors.New("unknown trait")
	ErrValueOutOfRange = errors.New("trait value out of range")
)

type traitSpec struct {
	def  float64
	high string
	low  string
}

// Traits is the fixed trait enumeration. Modifier output follows this order.
var Traits = []Trait{Warmth, Humor, Sarcasm, Formality, Patience}

var traitSpecs = map[Trait]traitSpec{
	Warmth: {
		def:  60,
		high: "Be noticeably warm and affectionate with this user.",
		low:  "Be cool and distant with this user; keep affection to a minimum.",
	},
	Humor: {
		def:  55,
		high: "Lean into jokes and playful banter.",
		low:  "Keep jokes to a minimum, this user is not here for comedy.",
	},
	Sarcasm: {
		def:  40,
		high: "Use plenty of sarcasm and dry wit.",
		low:  "Drop the sarcasm and speak plainly.",
	},
	Formality: {
		def:  35,
		high: "Use a more formal, polished register.",
		low:  "Be loose and casual, slang is fine.",
	},
	Patience: {
		def:  50,
		high: "Be patient and thorough when this user asks for something.",
		low:  "Keep replies short and a little impatient.",
	},
}

// ParseTrait resolves a trait name case-insensitively.
func ParseTrait(name string) (Trait, error) {
	t := Trait(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := traitSpecs[t]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTrait, name)
	}
	return t, nil
}

// Default returns the baseline value of t.
func Default(t Trait) float64 {
	return traitSpecs[t].def
}

// HighDirective and LowDirective return the prompt directives for t.
func HighDirective(t Trait) string { return traitSpecs[t].high }
func LowDirective(t Trait) string { return traitSpecs[t].low }

// Vector maps traits to values in [0, 100]. A missing trait reads as its
// default.
type Vector map[Trait]float64

func DefaultVector() Vector {
	v := make(Vector, len(Traits))
	for _, t := range Traits {
		v[t] = Default(t)
	}
	return v
}

func (v Vector) Get(t Trait) float64 {
	if val, ok := v[t]; ok {
		return val
	}
	return Default(t)
}

func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	for t, val := range v {
		out[t] = val
	}
	return out
}

// Clamp limits x to [0, 100].
func Clamp(x float64) float64 {
	return max(MinValue, min(MaxValue, x))
}
