package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/personality"
	"github.com/stellarlinkco/moodclaw/internal/shortcut"
)

const commandPrefix = "!"

// Operator performs the privileged state changes. Chat commands and the CLI
// both go through it.
type Operator struct {
	Ignore      *shortcut.IgnoreList
	Personality *personality.Store
}

func (o Operator) IgnoreUser(id string) (string, error) {
	added, err := o.Ignore.Add(id)
	if err != nil && !added {
		return "", err
	}
	msg := fmt.Sprintf("Now ignoring %s.", id)
	if !added {
		msg = fmt.Sprintf("Already ignoring %s.", id)
	}
	return msg, err
}

func (o Operator) UnignoreUser(id string) (string, error) {
	removed, err := o.Ignore.Remove(id)
	if !removed {
		return fmt.Sprintf("%s was not ignored.", id), err
	}
	return fmt.Sprintf("No longer ignoring %s.", id), err
}

func (o Operator) ClearIgnored() (string, error) {
	n, err := o.Ignore.Clear()
	return fmt.Sprintf("Cleared %d ignored user(s).", n), err
}

func (o Operator) ListIgnored() string {
	ids := o.Ignore.List()
	if len(ids) == 0 {
		return "Nobody is ignored."
	}
	return "Ignored: " + strings.Join(ids, ", ")
}

func (o Operator) ShowTraits(id string) string {
	rec, ok := o.Personality.Get(id)
	if !ok {
		return fmt.Sprintf("%s has no record yet (defaults: %s).", id, FormatTraits(personality.DefaultVector()))
	}
	return fmt.Sprintf("%s: %s (last update %s, %d logged interactions)",
		id, FormatTraits(rec.Traits), rec.LastUpdate.UTC().Format("2006-01-02 15:04"), len(rec.InteractionHistory))
}

func (o Operator) ResetTraits(id string) (string, error) {
	_, err := o.Personality.Reset(id)
	return fmt.Sprintf("Reset %s to defaults.", id), err
}

func (o Operator) SetTrait(id, trait, value string) (string, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return "", fmt.Errorf("trait value %q is not a number", value)
	}
	rec, err := o.Personality.SetTrait(id, trait, v)
	if err != nil && rec.Traits == nil {
		return "", err
	}
	return fmt.Sprintf("%s: %s", id, FormatTraits(rec.Traits)), err
}

// FormatTraits renders a vector in trait order, e.g. "warmth 60.0, humor 55.0".
func FormatTraits(v personality.Vector) string {
	parts := make([]string, len(personality.Traits))
	for i, t := range personality.Traits {
		parts[i] = fmt.Sprintf("%s %.1f", t, v.Get(t))
	}
	return strings.Join(parts, ", ")
}

const commandUsage = "Commands: !ignore <user>, !ignore clear, !ignore list, !unignore <user>, " +
	"!traits <user>, !reset <user>, !settrait <user> <trait> <value>"

// command runs an operator command. ok is false when text is not a command,
// so it is handled as an ordinary message.
func (p *Pipeline) command(channel, text string) (string, bool) {
	if !strings.HasPrefix(text, commandPrefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(text, commandPrefix))
	if len(fields) == 0 {
		return "", false
	}
	op := Operator{Ignore: p.deps.Ignore, Personality: p.deps.Engine.Store()}
	args := fields[1:]
	user := func(i int) string { return UserKey(channel, args[i]) }

	var (
		out string
		err error
	)
	switch name := strings.ToLower(fields[0]); {
	case name == "ignore" && len(args) == 1 && strings.EqualFold(args[0], "clear"):
		out, err = op.ClearIgnored()
	case name == "ignore" && len(args) == 1 && strings.EqualFold(args[0], "list"):
		out = op.ListIgnored()
	case name == "ignore" && len(args) == 1:
		out, err = op.IgnoreUser(user(0))
	case name == "unignore" && len(args) == 1:
		out, err = op.UnignoreUser(user(0))
	case name == "traits" && len(args) == 1:
		out = op.ShowTraits(user(0))
	case name == "reset" && len(args) == 1:
		out, err = op.ResetTraits(user(0))
	case name == "settrait" && len(args) == 3:
		out, err = op.SetTrait(user(0), args[1], args[2])
	case name == "ignore", name == "unignore", name == "traits", name == "reset", name == "settrait", name == "help":
		return commandUsage, true
	default:
		return "", false
	}
	if err != nil {
		p.logger.Warn("operator command", zap.String("command", fields[0]), zap.Error(err))
		if out == "" {
			return "Error: " + err.Error(), true
		}
		out += " (not saved: " + err.Error() + ")"
	}
	return out, true
}

// UserKey qualifies a bare platform id with channel. Ids that already carry
// a channel prefix are returned as given.
func UserKey(channel, id string) string {
	id = strings.TrimSpace(id)
	if strings.Contains(id, ":") || channel == "" {
		return id
	}
	return channel + ":" + id
}

func firstField(text string) string {
	if f := strings.Fields(text); len(f) > 0 {
		return f[0]
	}
	return ""
}
