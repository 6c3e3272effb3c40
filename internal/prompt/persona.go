package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoPersona is returned when no persona text is configured anywhere.
var ErrNoPersona = errors.New("persona text is empty")

// PersonaSource resolves the base persona for a sender: a per-user override
// file if one exists, else inline text, else the persona file.
type PersonaSource struct {
	Text        string
	File        string
	OverrideDir string
}

// Base returns the persona text for userID.
func (p PersonaSource) Base(userID string) (string, error) {
	if text, ok := p.override(userID); ok {
		return text, nil
	}
	return p.Default()
}

// Default returns the persona used for senders without an override.
func (p PersonaSource) Default() (string, error) {
	if text := strings.TrimSpace(p.Text); text != "" {
		return text, nil
	}
	if p.File == "" {
		return "", ErrNoPersona
	}
	data, err := os.ReadFile(p.File)
	if err != nil {
		return "", fmt.Errorf("read persona: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("%s: %w", p.File, ErrNoPersona)
	}
	return text, nil
}

func (p PersonaSource) override(userID string) (string, bool) {
	if p.OverrideDir == "" || userID == "" || userID != filepath.Base(userID) || strings.HasPrefix(userID, ".") {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(p.OverrideDir, userID+".txt"))
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	return text, text != ""
}
