package shortcut

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/store"
)

// IgnoreList is the persisted set of senders who only get canned replies.
// The document maps each id to the time it was added.
type IgnoreList struct {
	backend store.Backend
	logger  *zap.Logger
	clock   clockwork.Clock

	mu  sync.RWMutex
	ids map[string]time.Time

	persistMu sync.Mutex
}

// NewIgnoreList creates an empty list over backend. A nil clock means the
// wall clock.
func NewIgnoreList(backend store.Backend, logger *zap.Logger, clock clockwork.Clock) *IgnoreList {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IgnoreList{
		backend: backend,
		logger:  logger.Named("ignore"),
		clock:   clock,
		ids:     make(map[string]time.Time),
	}
}

// Load reads the persisted list and merges seed ids into it. Seeded ids are
// only written back once the list is next mutated.
func (l *IgnoreList) Load(seed []string) error {
	ids := make(map[string]time.Time)
	if l.backend != nil {
		entries, err := store.ReadEntries(l.backend, store.DocIgnoreList)
		if err != nil {
			l.logger.Warn("ignore list unreadable, starting from seed", zap.Error(err))
		}
		for id, raw := range entries {
			var added time.Time
			if err := json.Unmarshal(raw, &added); err != nil {
				l.logger.Warn("ignore entry has bad timestamp", zap.String("user", id), zap.Error(err))
			}
			ids[id] = added
		}
	}
	for _, id := range seed {
		if id = strings.TrimSpace(id); id != "" {
			if _, ok := ids[id]; !ok {
				ids[id] = time.Time{}
			}
		}
	}

	l.mu.Lock()
	l.ids = ids
	l.mu.Unlock()
	return nil
}

func (l *IgnoreList) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.ids[id]
	return ok
}

// Add puts id on the list. It reports whether id was newly added.
func (l *IgnoreList) Add(id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("empty user id")
	}
	l.mu.Lock()
	if _, ok := l.ids[id]; ok {
		l.mu.Unlock()
		return false, nil
	}
	l.ids[id] = l.clock.Now().UTC()
	l.mu.Unlock()

	return true, l.persist()
}

func (l *IgnoreList) Remove(id string) (bool, error) {
	l.mu.Lock()
	if _, ok := l.ids[id]; !ok {
		l.mu.Unlock()
		return false, nil
	}
	delete(l.ids, id)
	l.mu.Unlock()

	return true, l.persist()
}

// Clear empties the list and returns how many ids were removed.
func (l *IgnoreList) Clear() (int, error) {
	l.mu.Lock()
	n := len(l.ids)
	l.ids = make(map[string]time.Time)
	l.mu.Unlock()

	return n, l.persist()
}

// List returns the ignored ids, sorted.
func (l *IgnoreList) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (l *IgnoreList) persist() error {
	if l.backend == nil {
		return nil
	}
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	l.mu.RLock()
	doc := make(map[string]time.Time, len(l.ids))
	for id, added := range l.ids {
		doc[id] = added
	}
	l.mu.RUnlock()

	if err := store.WriteJSON(l.backend, store.DocIgnoreList, doc); err != nil {
		l.logger.Error("persist ignore list failed", zap.Error(err))
		return fmt.Errorf("persist ignore list: %w", err)
	}
	return nil
}
