// Package prompt assembles the generation request for one turn: the system
// directive plus a fixed, capped sequence of context sections.
package prompt

import (
	"strings"
)

type SectionKind string

const (
	KindReplyChain     SectionKind = "reply_chain"
	KindMention        SectionKind = "mention"
	KindOwnHistory     SectionKind = "own_history"
	KindChannelHistory SectionKind = "channel_history"
	KindInstruction    SectionKind = "instruction"
)

// Section is one labelled context block.
type Section struct {
	Kind  SectionKind
	Label string
	Lines []string
}

// Prompt is the typed request for one turn. It is built per message and
// never stored.
type Prompt struct {
	System   string
	Sections []Section
	Author   string
	Message  string
}

// Render serializes the prompt. Output depends only on the prompt value.
func (p Prompt) Render() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.System))
	for _, s := range p.Sections {
		b.WriteString("\n\n### ")
		b.WriteString(s.Label)
		for _, line := range s.Lines {
			b.WriteString("\n")
			b.WriteString(line)
		}
	}
	b.WriteString("\n\n### Latest message")
	if p.Author != "" {
		b.WriteString(" from ")
		b.WriteString(p.Author)
	}
	b.WriteString("\n")
	b.WriteString(p.Message)
	return b.String()
}

// Kinds lists section kinds in order.
func (p Prompt) Kinds() []SectionKind {
	out := make([]SectionKind, len(p.Sections))
	for i, s := range p.Sections {
		out[i] = s.Kind
	}
	return out
}
