// Package store persists named documents. Every write replaces the whole
// document; there is no incremental append format.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Document names used by the state stores.
const (
	DocUserHistory = "user_history"
	DocPersonality = "personality"
	DocIgnoreList  = "ignore_list"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrNotFound is returned by Read when the document has never been written.
var ErrNotFound = errors.New("document not found")

// Backend reads and rewrites whole documents by name.
type Backend interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Close() error
}

// Open returns the backend selected by kind ("file" or "sqlite").
func Open(kind, dir, dbPath string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendFile:
		return NewFileBackend(dir)
	case BackendSQLite:
		return NewSQLiteBackend(dbPath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// WriteJSON marshals v as indented JSON and writes it as document name.
func WriteJSON(b Backend, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := b.Write(name, data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadEntries loads a JSON object document as raw per-key entries so callers
// can decode each key on its own. A missing document yields an empty map and
// no error.
func ReadEntries(b Backend, name string) (map[string]json.RawMessage, error) {
	data, err := b.Read(name)
	if errors.Is(err, ErrNotFound) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return map[string]json.RawMessage{}, fmt.Errorf("read %s: %w", name, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	entries := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return map[string]json.RawMessage{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return entries, nil
}
