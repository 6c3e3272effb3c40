package personality

import (
	"time"

	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/classifier"
)

type EngineOptions struct {
	AdaptationRate float64
	ModifierSpread float64
	InteractionLog int
	Logger         *zap.Logger
}

// Engine adapts stored traits to incoming messages and derives prompt
// modifiers from them.
type Engine struct {
	store      *Store
	tables     *Tables
	classifier *classifier.Classifier
	opts       EngineOptions
	logger     *zap.Logger
}

func NewEngine(s *Store, tables *Tables, cls *classifier.Classifier, opts EngineOptions) *Engine {
	if tables == nil {
		tables = DefaultTables()
	}
	if cls == nil {
		cls = classifier.New(tables.ClassifierCategories(), nil)
	}
	if opts.AdaptationRate <= 0 {
		opts.AdaptationRate = 0.05
	}
	if opts.ModifierSpread <= 0 {
		opts.ModifierSpread = 15
	}
	if opts.InteractionLog <= 0 {
		opts.InteractionLog = 20
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		store:      s,
		tables:     tables,
		classifier: cls,
		opts:       opts,
		logger:     opts.Logger.Named("adapt"),
	}
}

func (e *Engine) Store() *Store { return e.store }

// Update classifies text and applies delta*strength*rate for every matched
// category to the user's traits. Opposing categories are summed, not
// reconciled. The interaction is logged and the record persisted; on a
// persistence error the updated vector is still returned.
func (e *Engine) Update(userID, text string) (Vector, error) {
	categories := e.classifier.Classify(text)

	rec, err := e.store.Mutate(userID, func(rec *Record, now time.Time) error {
		// Table order, so clamping at the bounds is deterministic.
		for _, cat := range e.tables.Categories {
			strength, ok := categories[cat.Name]
			if !ok {
				continue
			}
			for _, trait := range Traits {
				if delta, ok := cat.Deltas[trait]; ok {
					rec.Traits[trait] = Clamp(rec.Traits.Get(trait) + delta*strength*e.opts.AdaptationRate)
				}
			}
		}
		rec.logInteraction(Interaction{
			Timestamp:  now,
			Excerpt:    Excerpt(text),
			Categories: categories,
		}, e.opts.InteractionLog)
		rec.LastUpdate = now
		return nil
	})

	e.logger.Debug("traits updated",
		zap.String("user", userID),
		zap.Any("categories", categories),
		zap.Any("traits", rec.Traits),
	)
	return rec.Traits, err
}

// Modifiers returns the directives for every trait at least ModifierSpread
// away from its default, in trait order.
func (e *Engine) Modifiers(userID string) []string {
	return ModifiersFor(e.store.Vector(userID), e.opts.ModifierSpread)
}

// ModifiersFor derives directives from a vector.
func ModifiersFor(v Vector, spread float64) []string {
	var out []string
	for _, t := range Traits {
		val, def := v.Get(t), Default(t)
		switch {
		case val >= def+spread:
			out = append(out, HighDirective(t))
		case val <= def-spread:
			out = append(out, LowDirective(t))
		}
	}
	return out
}
