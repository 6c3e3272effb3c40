package gateway

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/classifier"
	"github.com/stellarlinkco/moodclaw/internal/config"
	"github.com/stellarlinkco/moodclaw/internal/conversation"
	"github.com/stellarlinkco/moodclaw/internal/generate"
	"github.com/stellarlinkco/moodclaw/internal/history"
	"github.com/stellarlinkco/moodclaw/internal/metrics"
	"github.com/stellarlinkco/moodclaw/internal/personality"
	"github.com/stellarlinkco/moodclaw/internal/prompt"
	"github.com/stellarlinkco/moodclaw/internal/shortcut"
	"github.com/stellarlinkco/moodclaw/internal/store"
)

// State is the persisted bot state shared by the gateway and the CLI.
type State struct {
	Backend store.Backend
	History *history.Store
	Traits  *personality.Store
	Ignore  *shortcut.IgnoreList
}

// OpenState opens the configured storage backend and loads every store.
// Unreadable documents start empty; only a failure to open the backend is
// returned.
func OpenState(cfg *config.Config, logger *zap.Logger, clock clockwork.Clock) (*State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	backend, err := store.Open(cfg.Storage.Backend, cfg.DataDir(), cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	st := &State{
		Backend: backend,
		History: history.NewStore(backend, history.Options{
			ChannelLines: cfg.History.ChannelLines,
			UserLines:    cfg.History.UserLines,
		}, logger),
		Traits: personality.NewStore(backend, personality.StoreOptions{
			ReversionRate: cfg.Personality.ReversionRate,
			Clock:         clock,
			Logger:        logger,
		}),
		Ignore: shortcut.NewIgnoreList(backend, logger, clock),
	}

	if err := st.History.Load(); err != nil {
		logger.Warn("load history", zap.Error(err))
	}
	if err := st.Traits.Load(); err != nil {
		logger.Warn("load personality", zap.Error(err))
	}
	if err := st.Ignore.Load(cfg.Agent.IgnoreFrom); err != nil {
		logger.Warn("load ignore list", zap.Error(err))
	}
	return st, nil
}

// Operator returns the privileged command surface over this state.
func (s *State) Operator() conversation.Operator {
	return conversation.Operator{Ignore: s.Ignore, Personality: s.Traits}
}

func (s *State) Close() error {
	if s == nil || s.Backend == nil {
		return nil
	}
	return s.Backend.Close()
}

// NewPipeline wires the adaptation engine, prompt builder and guarded
// generator over st. It fails when the tables file is invalid or no persona
// text is configured.
func NewPipeline(cfg *config.Config, st *State, gen generate.Generator, m *metrics.Metrics, logger *zap.Logger) (*conversation.Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tables, err := personality.LoadTables(cfg.TablesPath())
	if err != nil {
		return nil, fmt.Errorf("load personality tables: %w", err)
	}
	engine := personality.NewEngine(st.Traits, tables,
		classifier.New(tables.ClassifierCategories(), classifier.NewLexicon()),
		personality.EngineOptions{
			AdaptationRate: cfg.Personality.AdaptationRate,
			ModifierSpread: cfg.Personality.ModifierSpread,
			InteractionLog: cfg.Personality.InteractionLog,
			Logger:         logger,
		})

	persona := prompt.PersonaSource{
		Text:        cfg.Agent.Persona,
		File:        cfg.PersonaPath(),
		OverrideDir: cfg.PersonaDirPath(),
	}
	if _, err := persona.Default(); err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	builder := prompt.NewBuilder(st.History, engine, prompt.BuilderOptions{
		Persona:       persona,
		OwnerID:       cfg.Agent.OwnerID,
		OwnerAddendum: cfg.Agent.OwnerAddendum,
	})

	guard := generate.NewGuard(gen, generate.GuardOptions{
		Timeout:         time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		RatePerMinute:   cfg.Generation.RatePerMinute,
		BreakerFailures: cfg.Generation.BreakerFailures,
		BreakerCooldown: time.Duration(cfg.Generation.BreakerCooldown) * time.Second,
		Metrics:         m,
		Logger:          logger,
	})

	return conversation.New(conversation.Deps{
		History:   st.History,
		Engine:    engine,
		Ignore:    st.Ignore,
		Builder:   builder,
		Generator: guard,
	}, conversation.Options{
		OwnerID:      cfg.Agent.OwnerID,
		DedupRetries: cfg.Generation.DedupRetries,
		Metrics:      m,
		Logger:       logger,
	}), nil
}
