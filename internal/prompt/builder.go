package prompt

import (
	"strings"

	"github.com/stellarlinkco/moodclaw/internal/history"
)

const (
	modifiersHeading = "## Personality Adjustments"
	trailingNote     = "Answer only the latest message below. Earlier messages are context, do not reply to them. Stay in character."
)

// Limits caps each section, in lines.
type Limits struct {
	ReplyChain int
	Mention    int
	Own        int
	Channel    int
}

func DefaultLimits() Limits {
	return Limits{ReplyChain: 2, Mention: 4, Own: 4, Channel: 4}
}

// ChainMessage is one ancestor in a reply chain.
type ChainMessage struct {
	Author string
	Text   string
}

// Mention is a user referenced in the message.
type Mention struct {
	ID   string
	Name string
	Bot  bool
}

// Input is everything the builder needs from the inbound message.
// ReplyChain is ordered oldest first.
type Input struct {
	UserID     string
	UserName   string
	ChannelID  string
	Text       string
	ReplyChain []ChainMessage
	Mentions   []Mention
}

// HistoryReader is the read side of the history store.
type HistoryReader interface {
	Recent(scope history.Scope, key string, n int) []string
}

// ModifierSource yields personality directives for a user.
type ModifierSource interface {
	Modifiers(userID string) []string
}

type BuilderOptions struct {
	Persona       PersonaSource
	OwnerID       string
	OwnerAddendum string
	Limits        Limits
}

type Builder struct {
	opts      BuilderOptions
	history   HistoryReader
	modifiers ModifierSource
}

func NewBuilder(h HistoryReader, m ModifierSource, opts BuilderOptions) *Builder {
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	return &Builder{opts: opts, history: h, modifiers: m}
}

// Build resolves the system directive and collects the context sections in
// fixed order, omitting empty ones.
func (b *Builder) Build(in Input) (Prompt, error) {
	system, err := b.system(in.UserID)
	if err != nil {
		return Prompt{}, err
	}

	var sections []Section
	add := func(s Section) {
		if len(s.Lines) > 0 {
			sections = append(sections, s)
		}
	}

	add(Section{Kind: KindReplyChain, Label: "Reply chain", Lines: b.replyChain(in.ReplyChain)})

	for _, m := range b.mentions(in) {
		lines := b.recent(history.ScopeUser, m.ID, b.opts.Limits.Mention)
		add(Section{
			Kind:  KindMention,
			Label: "Recent messages from " + m.Name,
			Lines: LabelTurns(lines, m.Name),
		})
	}

	sender := nameOr(in.UserName, "User")
	own := b.recent(history.ScopeUser, in.UserID, b.opts.Limits.Own)
	add(Section{
		Kind:  KindOwnHistory,
		Label: "Your recent conversation with " + sender,
		Lines: LabelTurns(own, sender),
	})

	channel := b.recent(history.ScopeChannel, in.ChannelID, b.opts.Limits.Channel)
	add(Section{
		Kind:  KindChannelHistory,
		Label: "Recent conversation in this channel",
		Lines: LabelTurns(channel, "User"),
	})

	add(Section{Kind: KindInstruction, Label: "Instructions", Lines: []string{trailingNote}})

	return Prompt{
		System:   system,
		Sections: sections,
		Author:   in.UserName,
		Message:  in.Text,
	}, nil
}

func (b *Builder) system(userID string) (string, error) {
	base, err := b.opts.Persona.Base(userID)
	if err != nil {
		return "", err
	}
	parts := []string{base}
	if b.opts.OwnerID != "" && userID == b.opts.OwnerID && strings.TrimSpace(b.opts.OwnerAddendum) != "" {
		parts = append(parts, strings.TrimSpace(b.opts.OwnerAddendum))
	}
	if b.modifiers != nil {
		if mods := b.modifiers.Modifiers(userID); len(mods) > 0 {
			var block strings.Builder
			block.WriteString(modifiersHeading)
			for _, m := range mods {
				block.WriteString("\n- ")
				block.WriteString(m)
			}
			parts = append(parts, block.String())
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (b *Builder) replyChain(chain []ChainMessage) []string {
	if n := b.opts.Limits.ReplyChain; len(chain) > n {
		chain = chain[len(chain)-n:]
	}
	lines := make([]string, 0, len(chain))
	for _, m := range chain {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		lines = append(lines, nameOr(m.Author, "Someone")+": "+m.Text)
	}
	return lines
}

// mentions keeps the first occurrence of each mentioned human. Automated
// accounts, the bot itself included, are flagged by the channel.
func (b *Builder) mentions(in Input) []Mention {
	seen := map[string]bool{}
	var out []Mention
	for _, m := range in.Mentions {
		if m.ID == "" || m.Bot || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		m.Name = nameOr(m.Name, m.ID)
		out = append(out, m)
	}
	return out
}

func (b *Builder) recent(scope history.Scope, key string, n int) []string {
	if b.history == nil || key == "" || n <= 0 {
		return nil
	}
	return b.history.Recent(scope, key, n)
}

// LabelTurns prefixes history lines with their speaker. Lines alternate user
// message and bot reply, and the newest line is always a bot reply.
func LabelTurns(lines []string, userLabel string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		speaker := userLabel
		if (len(lines)-1-i)%2 == 0 {
			speaker = "You"
		}
		out[i] = speaker + ": " + line
	}
	return out
}

func nameOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}
