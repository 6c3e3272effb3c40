package personality

import (
	"maps"
	"time"
	"unicode/utf8"
)

const (
	excerptLimit  = 100
	excerptMarker = "..."
)

// Interaction is one entry of a user's interaction log.
type Interaction struct {
	Timestamp  time.Time          `json:"timestamp"`
	Excerpt    string             `json:"excerpt"`
	Categories map[string]float64 `json:"categories"`
}

// Record is the persisted personality state of one user.
type Record struct {
	Traits             Vector        `json:"traits"`
	LastUpdate         time.Time     `json:"last_update"`
	InteractionHistory []Interaction `json:"interaction_history"`
}

// NewRecord returns a record at the default vector with an empty log.
func NewRecord(now time.Time) Record {
	return Record{
		Traits:             DefaultVector(),
		LastUpdate:         now,
		InteractionHistory: []Interaction{},
	}
}

func (r Record) Clone() Record {
	out := Record{
		Traits:             r.Traits.Clone(),
		LastUpdate:         r.LastUpdate,
		InteractionHistory: make([]Interaction, len(r.InteractionHistory)),
	}
	for i, in := range r.InteractionHistory {
		in.Categories = maps.Clone(in.Categories)
		out.InteractionHistory[i] = in
	}
	return out
}

// normalize fills traits missing from a stored record and clamps the rest.
func (r *Record) normalize() {
	if r.Traits == nil {
		r.Traits = make(Vector, len(Traits))
	}
	for _, t := range Traits {
		r.Traits[t] = Clamp(r.Traits.Get(t))
	}
	if r.InteractionHistory == nil {
		r.InteractionHistory = []Interaction{}
	}
}

// decay moves every trait toward its default by rate points per elapsed day,
// stopping at the default, and stamps LastUpdate with now.
func (r *Record) decay(now time.Time, rate float64) {
	days := now.Sub(r.LastUpdate).Hours() / 24
	if days > 0 && rate > 0 {
		step := rate * days
		for _, t := range Traits {
			v, d := r.Traits.Get(t), Default(t)
			switch {
			case v > d:
				v = max(d, v-step)
			case v < d:
				v = min(d, v+step)
			}
			r.Traits[t] = v
		}
	}
	if now.After(r.LastUpdate) {
		r.LastUpdate = now
	}
}

func (r *Record) logInteraction(in Interaction, limit int) {
	r.InteractionHistory = append(r.InteractionHistory, in)
	if over := len(r.InteractionHistory) - limit; limit > 0 && over > 0 {
		r.InteractionHistory = append([]Interaction(nil), r.InteractionHistory[over:]...)
	}
}

// Excerpt truncates text to 100 runes, appending "..." when cut.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLimit {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptLimit]) + excerptMarker
}
