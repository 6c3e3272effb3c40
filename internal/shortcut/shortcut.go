// Package shortcut answers some messages with canned replies before any
// classification or generation happens.
package shortcut

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

type Rule string

const (
	RuleIgnore Rule = "ignore"
	RuleRepeat Rule = "repeat"
	RuleDoubt  Rule = "doubt"
)

const doubtTrigger = "are you sure"

// Replies holds the canned reply sets. An empty set disables its rule.
type Replies struct {
	Ignore []string
	Repeat []string
	Doubt  []string
}

func DefaultReplies() Replies {
	return Replies{
		Ignore: []string{
			"I'm not talking to you.",
			"Cool story.",
			"Did someone say something? Thought I heard a noise.",
			"*stares into the distance*",
			"Anyway.",
			"No.",
		},
		Repeat: []string{
			"You literally just said that.",
		},
		Doubt: []string{
			"Yes, I'm sure.",
			"I've never been more sure of anything in my life.",
			"Are YOU sure?",
			"100%. Next question.",
			"Doubting me now? Bold.",
		},
	}
}

// PreviousMessages looks up the sender's last stored message.
type PreviousMessages interface {
	LastUserMessage(userID string) (string, bool)
}

// Result is a canned reply and the rule that produced it.
type Result struct {
	Rule  Rule
	Reply string
}

type Layer struct {
	ignore   *IgnoreList
	previous PreviousMessages
	replies  Replies
	pick     func(n int) int
}

type Option func(*Layer)

// WithPicker replaces the uniform random choice, for tests.
func WithPicker(pick func(n int) int) Option {
	return func(l *Layer) { l.pick = pick }
}

func WithReplies(r Replies) Option {
	return func(l *Layer) { l.replies = r }
}

func New(ignore *IgnoreList, previous PreviousMessages, opts ...Option) *Layer {
	l := &Layer{
		ignore:   ignore,
		previous: previous,
		replies:  DefaultReplies(),
		pick:     rand.IntN,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check applies the rules in priority order (ignore list, repeat, doubt
// trigger) and returns the first match.
func (l *Layer) Check(userID, text string) (Result, bool) {
	if l.ignore != nil && l.ignore.Contains(userID) {
		if r, ok := l.result(RuleIgnore, l.replies.Ignore); ok {
			return r, true
		}
	}
	if l.isRepeat(userID, text) {
		if r, ok := l.result(RuleRepeat, l.replies.Repeat); ok {
			return r, true
		}
	}
	if strings.Contains(strings.ToLower(text), doubtTrigger) {
		if r, ok := l.result(RuleDoubt, l.replies.Doubt); ok {
			return r, true
		}
	}
	return Result{}, false
}

// isRepeat compares against the sender's previous message. Messages that
// normalize to nothing never count as repeats.
func (l *Layer) isRepeat(userID, text string) bool {
	if l.previous == nil {
		return false
	}
	prev, ok := l.previous.LastUserMessage(userID)
	if !ok {
		return false
	}
	cur := Normalize(text)
	return cur != "" && cur == Normalize(prev)
}

func (l *Layer) result(rule Rule, set []string) (Result, bool) {
	if len(set) == 0 {
		return Result{}, false
	}
	return Result{Rule: rule, Reply: set[l.pick(len(set))]}, true
}

// Normalize lowercases s and drops whitespace and punctuation.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
