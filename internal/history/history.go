// Package history keeps bounded conversation logs per channel and per user.
//
// Lines are stored raw, alternating user message and bot reply, so the last
// line of a ring is normally the bot's most recent reply. User rings are
// persisted as one document after every mutation; channel rings live only
// for the process lifetime.
package history

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/store"
)

type Scope string

const (
	ScopeChannel Scope = "channel"
	ScopeUser    Scope = "user"
)

type Options struct {
	ChannelLines int
	UserLines    int
}

type entry struct {
	mu    sync.Mutex
	lines *Ring[string]
}

type Store struct {
	backend store.Backend
	logger  *zap.Logger
	opts    Options

	mu       sync.Mutex
	channels map[string]*entry
	users    map[string]*entry

	persistMu sync.Mutex
}

func NewStore(backend store.Backend, opts Options, logger *zap.Logger) *Store {
	if opts.ChannelLines <= 0 {
		opts.ChannelLines = 100
	}
	if opts.UserLines <= 0 {
		opts.UserLines = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backend:  backend,
		logger:   logger.Named("history"),
		opts:     opts,
		channels: make(map[string]*entry),
		users:    make(map[string]*entry),
	}
}

// Load replaces in-memory user history with the persisted document. A missing
// or malformed document leaves history empty; a user entry that fails to
// decode is skipped.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	entries, err := store.ReadEntries(s.backend, store.DocUserHistory)
	if err != nil {
		s.logger.Warn("user history unreadable, starting empty", zap.Error(err))
	}

	users := make(map[string]*entry, len(entries))
	for userID, raw := range entries {
		var lines []string
		if err := json.Unmarshal(raw, &lines); err != nil {
			s.logger.Warn("dropping malformed user history", zap.String("user", userID), zap.Error(err))
			continue
		}
		e := &entry{lines: NewRing[string](s.opts.UserLines)}
		e.lines.Push(lines...)
		users[userID] = e
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.logger.Info("user history loaded", zap.Int("users", len(users)))
	return nil
}

func (s *Store) ring(scope Scope, key string, create bool) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, capacity := s.channels, s.opts.ChannelLines
	if scope == ScopeUser {
		m, capacity = s.users, s.opts.UserLines
	}
	e, ok := m[key]
	if !ok && create {
		e = &entry{lines: NewRing[string](capacity)}
		m[key] = e
	}
	return e
}

// Append adds lines to the ring for (scope, key). User appends are persisted
// before returning; a persistence error is returned but the in-memory append
// stands.
func (s *Store) Append(scope Scope, key string, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	e := s.ring(scope, key, true)
	e.mu.Lock()
	e.lines.Push(lines...)
	e.mu.Unlock()

	if scope == ScopeUser {
		return s.persist()
	}
	return nil
}

// RecordTurn appends a user message and the reply to both the channel ring and
// the user ring.
func (s *Store) RecordTurn(channelID, userID, userMsg, reply string) error {
	if err := s.Append(ScopeChannel, channelID, userMsg, reply); err != nil {
		return err
	}
	return s.Append(ScopeUser, userID, userMsg, reply)
}

// Recent returns up to n of the most recent lines for (scope, key), oldest
// first. n <= 0 returns the whole ring.
func (s *Store) Recent(scope Scope, key string, n int) []string {
	e := s.ring(scope, key, false)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lines.Tail(n)
}

// LastUserMessage returns the previous message the user sent, i.e. the user
// half of their most recent recorded turn.
func (s *Store) LastUserMessage(userID string) (string, bool) {
	lines := s.Recent(ScopeUser, userID, 2)
	if len(lines) < 2 {
		return "", false
	}
	return lines[0], true
}

// Users lists the ids with persisted history, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) persist() error {
	if s.backend == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	users := make(map[string]*entry, len(s.users))
	for id, e := range s.users {
		users[id] = e
	}
	s.mu.Unlock()

	doc := make(map[string][]string, len(users))
	for id, e := range users {
		e.mu.Lock()
		doc[id] = e.lines.Tail(0)
		e.mu.Unlock()
	}

	if err := store.WriteJSON(s.backend, store.DocUserHistory, doc); err != nil {
		s.logger.Error("persist user history failed", zap.Error(err))
		return fmt.Errorf("persist user history: %w", err)
	}
	return nil
}
