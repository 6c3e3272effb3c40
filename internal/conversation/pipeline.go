// Package conversation runs one inbound message through shortcuts,
// adaptation, context assembly and generation, and commits the turn.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/generate"
	"github.com/stellarlinkco/moodclaw/internal/history"
	"github.com/stellarlinkco/moodclaw/internal/metrics"
	"github.com/stellarlinkco/moodclaw/internal/personality"
	"github.com/stellarlinkco/moodclaw/internal/prompt"
	"github.com/stellarlinkco/moodclaw/internal/shortcut"
	"github.com/stellarlinkco/moodclaw/internal/store"
)

// Deps are the stores and stages a Pipeline drives. Generator is usually a
// generate.Guard around the configured provider.
type Deps struct {
	History   *history.Store
	Engine    *personality.Engine
	Ignore    *shortcut.IgnoreList
	Shortcuts *shortcut.Layer
	Builder   *prompt.Builder
	Generator generate.Generator
}

// Options configure a Pipeline. OwnerID is a user key (channel:id) allowed
// to run operator commands.
type Options struct {
	OwnerID      string
	DedupRetries int
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Reply is the result of one handled message. Empty Text means nothing is
// sent back.
type Reply struct {
	TurnID  string
	Text    string
	Outcome string
	Rule    shortcut.Rule
	Retries int
	Err     error
}

type Pipeline struct {
	deps    Deps
	opts    Options
	dedup   *generate.Deduper
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if deps.Shortcuts == nil {
		deps.Shortcuts = shortcut.New(deps.Ignore, deps.History)
	}
	return &Pipeline{
		deps:    deps,
		opts:    opts,
		dedup:   generate.NewDeduper(deps.Generator, opts.DedupRetries, opts.Metrics),
		logger:  opts.Logger.Named("conversation"),
		metrics: opts.Metrics,
	}
}

// Handle processes msg and returns the reply to send. Failures never
// escape: generation errors become an apology and persistence errors are
// logged while in-memory state carries on.
func (p *Pipeline) Handle(ctx context.Context, msg bus.InboundMessage) Reply {
	userKey, channelKey := msg.UserKey(), msg.SessionKey()
	reply := Reply{TurnID: uuid.NewString()}
	logger := p.logger.With(
		zap.String("turn", reply.TurnID),
		zap.String("user", userKey),
		zap.String("channel", channelKey),
	)

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return reply
	}

	if p.isOwner(userKey) {
		if out, ok := p.command(msg.Channel, text); ok {
			reply.Text, reply.Outcome = out, metrics.OutcomeCommand
			p.metrics.ObserveTurn(reply.Outcome)
			logger.Info("operator command", zap.String("command", firstField(text)))
			return reply
		}
	}

	if res, ok := p.deps.Shortcuts.Check(userKey, text); ok {
		reply.Text, reply.Outcome, reply.Rule = res.Reply, metrics.OutcomeShortcut, res.Rule
		p.commit(logger, channelKey, userKey, text, res.Reply)
		p.metrics.ObserveShortcut(string(res.Rule))
		p.metrics.ObserveTurn(reply.Outcome)
		logger.Debug("shortcut reply", zap.String("rule", string(res.Rule)))
		return reply
	}

	if _, err := p.deps.Engine.Update(userKey, text); err != nil {
		p.metrics.ObservePersistError(store.DocPersonality)
		logger.Warn("personality not persisted", zap.Error(err))
	}
	p.metrics.ObserveTraitUpdate()

	pr, err := p.deps.Builder.Build(p.input(msg, text))
	if err != nil {
		logger.Error("build prompt", zap.Error(err))
		return p.fail(reply, err)
	}
	// The dedup set is the channel history as it stood when the prompt was built.
	recent := p.deps.History.Recent(history.ScopeChannel, channelKey, 0)

	start := time.Now()
	out, retries, err := p.dedup.Generate(ctx, pr.Render(), recent)
	reply.Retries = retries
	if err != nil {
		logger.Warn("generation failed",
			zap.String("kind", string(generate.KindOf(err))),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return p.fail(reply, err)
	}
	out = strings.TrimSpace(out)

	p.commit(logger, channelKey, userKey, text, out)
	reply.Text, reply.Outcome = out, metrics.OutcomeReplied
	p.metrics.ObserveTurn(reply.Outcome)
	logger.Debug("replied",
		zap.Int("retries", retries),
		zap.Strings("sections", kindNames(pr.Kinds())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return reply
}

func (p *Pipeline) fail(reply Reply, err error) Reply {
	reply.Text, reply.Outcome, reply.Err = generate.Apology(err), metrics.OutcomeFailed, err
	p.metrics.ObserveTurn(reply.Outcome)
	return reply
}

func (p *Pipeline) commit(logger *zap.Logger, channelKey, userKey, text, out string) {
	if err := p.deps.History.RecordTurn(channelKey, userKey, text, out); err != nil {
		p.metrics.ObservePersistError(store.DocUserHistory)
		logger.Warn("history not persisted", zap.Error(err))
	}
}

func (p *Pipeline) isOwner(userKey string) bool {
	return p.opts.OwnerID != "" && userKey == p.opts.OwnerID
}

func (p *Pipeline) input(msg bus.InboundMessage, text string) prompt.Input {
	in := prompt.Input{
		UserID:    msg.UserKey(),
		UserName:  msg.Sender.Name,
		ChannelID: msg.SessionKey(),
		Text:      text,
	}
	for _, c := range msg.ReplyChain {
		in.ReplyChain = append(in.ReplyChain, prompt.ChainMessage{Author: c.Author.Name, Text: c.Content})
	}
	for _, m := range msg.Mentions {
		if m.ID == "" {
			continue
		}
		in.Mentions = append(in.Mentions, prompt.Mention{
			ID:   msg.Channel + ":" + m.ID,
			Name: m.Name,
			Bot:  m.Bot,
		})
	}
	return in
}

func kindNames(kinds []prompt.SectionKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
