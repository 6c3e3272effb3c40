package personality

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/store"
)

type StoreOptions struct {
	// ReversionRate is trait points per day moved back toward the default.
	ReversionRate float64
	Clock         clockwork.Clock
	Logger        *zap.Logger
}

type slot struct {
	mu  sync.Mutex
	rec Record
}

// Store owns every user's Record. Mutations to one user are serialized on
// that user's slot; document writes are serialized on persistMu.
type Store struct {
	backend store.Backend
	clock   clockwork.Clock
	logger  *zap.Logger
	rate    float64

	mu      sync.Mutex
	records map[string]*slot

	persistMu sync.Mutex
}

func NewStore(backend store.Backend, opts StoreOptions) *Store {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReversionRate < 0 {
		opts.ReversionRate = 0
	}
	return &Store{
		backend: backend,
		clock:   opts.Clock,
		logger:  opts.Logger.Named("personality"),
		rate:    opts.ReversionRate,
		records: make(map[string]*slot),
	}
}

// Load reads the personality document, decays every record by the time
// elapsed since its last update and writes the decayed state back. Records
// that fail to decode are dropped individually; an unreadable document
// starts the store empty. Only a failed write-back is returned.
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	entries, err := store.ReadEntries(s.backend, store.DocPersonality)
	if err != nil {
		s.logger.Warn("personality document unreadable, starting empty", zap.Error(err))
	}

	now := s.clock.Now()
	records := make(map[string]*slot, len(entries))
	for userID, raw := range entries {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("dropping malformed personality record", zap.String("user", userID), zap.Error(err))
			continue
		}
		rec.normalize()
		rec.decay(now, s.rate)
		records[userID] = &slot{rec: rec}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.logger.Info("personality records loaded", zap.Int("users", len(records)))
	if len(records) == 0 {
		return nil
	}
	return s.persist()
}

// Decay applies reversion to every record as of now. Linear moves compose,
// so sweeping twice equals sweeping once over the combined interval.
func (s *Store) Decay(now time.Time) (int, error) {
	slots := s.snapshot()
	for _, sl := range slots {
		sl.mu.Lock()
		sl.rec.decay(now, s.rate)
		sl.mu.Unlock()
	}
	if len(slots) == 0 {
		return 0, nil
	}
	return len(slots), s.persist()
}

// Get returns a copy of the user's record.
func (s *Store) Get(userID string) (Record, bool) {
	s.mu.Lock()
	sl, ok := s.records[userID]
	s.mu.Unlock()
	if !ok {
		return Record{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.rec.Clone(), true
}

// Vector returns the user's current traits, or the default vector for a user
// never seen.
func (s *Store) Vector(userID string) Vector {
	rec, ok := s.Get(userID)
	if !ok {
		return DefaultVector()
	}
	return rec.Traits
}

// Mutate runs fn on the user's record, creating it at defaults if needed, and
// persists the result. The returned record is a copy taken after fn. A write
// failure is returned alongside the updated record; in-memory state keeps the
// change.
func (s *Store) Mutate(userID string, fn func(rec *Record, now time.Time) error) (Record, error) {
	now := s.clock.Now()

	s.mu.Lock()
	sl, ok := s.records[userID]
	if !ok {
		sl = &slot{rec: NewRecord(now)}
		s.records[userID] = sl
	}
	s.mu.Unlock()

	sl.mu.Lock()
	if err := fn(&sl.rec, now); err != nil {
		sl.mu.Unlock()
		return Record{}, err
	}
	out := sl.rec.Clone()
	sl.mu.Unlock()

	return out, s.persist()
}

// Reset replaces the user's record with defaults and an empty log.
func (s *Store) Reset(userID string) (Record, error) {
	return s.Mutate(userID, func(rec *Record, now time.Time) error {
		*rec = NewRecord(now)
		return nil
	})
}

// SetTrait sets one trait directly. Unknown traits, non-finite values and
// values outside [0, 100] are rejected without touching the record.
func (s *Store) SetTrait(userID, name string, value float64) (Record, error) {
	t, err := ParseTrait(name)
	if err != nil {
		return Record{}, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < MinValue || value > MaxValue {
		return Record{}, fmt.Errorf("%w: %s=%v", ErrValueOutOfRange, t, value)
	}
	return s.Mutate(userID, func(rec *Record, now time.Time) error {
		rec.Traits[t] = value
		rec.LastUpdate = now
		return nil
	})
}

// Users returns the known user ids, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) snapshot() map[string]*slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*slot, len(s.records))
	for id, sl := range s.records {
		out[id] = sl
	}
	return out
}

func (s *Store) persist() error {
	if s.backend == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	doc := make(map[string]Record)
	for id, sl := range s.snapshot() {
		sl.mu.Lock()
		doc[id] = sl.rec.Clone()
		sl.mu.Unlock()
	}
	if err := store.WriteJSON(s.backend, store.DocPersonality, doc); err != nil {
		s.logger.Error("persist personality failed", zap.Error(err))
		return fmt.Errorf("persist personality: %w", err)
	}
	return nil
}
