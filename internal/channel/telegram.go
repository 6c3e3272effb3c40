package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/config"
)

const (
	telegramChannelName = "telegram"
	maxReplyDepth       = 5
)

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

// TelegramChannel polls the Bot API. Telegram only resolves @username
// mentions to ids for users that have been seen, so the channel remembers
// every sender and reply author by username.
type TelegramChannel struct {
	BaseChannel
	token      string
	bot        TelegramBot
	self       tgbotapi.User
	proxy      string
	cancel     context.CancelFunc
	botFactory BotFactory

	mu    sync.Mutex
	known map[string]tgbotapi.User
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, b, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with custom bot factory (for testing)
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	ch := &TelegramChannel{
		BaseChannel: NewBaseChannel(telegramChannelName, b, cfg.AllowFrom),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		botFactory:  factory,
		known:       make(map[string]tgbotapi.User),
	}
	return ch, nil
}

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.SetBot(bot)
	t.logger.Info("authorized", zap.String("username", t.self.UserName))
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil {
					continue
				}
				t.handleMessage(ctx, update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info("polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	t.remember(msg.From)

	senderID := strconv.FormatInt(msg.From.ID, 10)
	if !t.IsAllowed(senderID) {
		t.logger.Info("rejected message", zap.String("sender", senderID), zap.String("username", msg.From.UserName))
		return
	}

	content, entities := msg.Text, msg.Entities
	if content == "" && msg.Caption != "" {
		content, entities = msg.Caption, msg.CaptionEntities
	}
	if strings.TrimSpace(content) == "" {
		return
	}

	if (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) && !t.addressed(msg, content, entities) {
		return
	}

	t.publish(ctx, bus.InboundMessage{
		ID:         strconv.Itoa(msg.MessageID),
		Channel:    telegramChannelName,
		Sender:     author(msg.From),
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		Content:    content,
		Timestamp:  time.Unix(int64(msg.Date), 0),
		ReplyChain: t.replyChain(msg),
		Mentions:   t.mentions(content, entities),
		Metadata: map[string]any{
			"username":   msg.From.UserName,
			"message_id": msg.MessageID,
		},
	})
}

// addressed reports whether a group message is meant for the bot: it
// mentions the bot or replies to one of its messages.
func (t *TelegramChannel) addressed(msg *tgbotapi.Message, content string, entities []tgbotapi.MessageEntity) bool {
	if r := msg.ReplyToMessage; r != nil && r.From != nil && r.From.ID == t.self.ID {
		return true
	}
	for _, e := range entities {
		switch {
		case e.IsMention():
			if t.self.UserName != "" && strings.EqualFold(strings.TrimPrefix(entityText(content, e), "@"), t.self.UserName) {
				return true
			}
		case e.IsTextMention():
			if e.User != nil && e.User.ID == t.self.ID {
				return true
			}
		}
	}
	return false
}

// replyChain walks the reply references, returning ancestors oldest first.
func (t *TelegramChannel) replyChain(msg *tgbotapi.Message) []bus.ChainMessage {
	var chain []bus.ChainMessage
	for r := msg.ReplyToMessage; r != nil && len(chain) < maxReplyDepth; r = r.ReplyToMessage {
		if r.From != nil {
			t.remember(r.From)
		}
		text := r.Text
		if text == "" {
			text = r.Caption
		}
		if text == "" {
			continue
		}
		chain = append(chain, bus.ChainMessage{Author: author(r.From), Content: text})
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// mentions resolves @username and text mentions to authors. Usernames the
// channel has never seen cannot be resolved and are dropped.
func (t *TelegramChannel) mentions(content string, entities []tgbotapi.MessageEntity) []bus.Author {
	var out []bus.Author
	for _, e := range entities {
		switch {
		case e.IsTextMention() && e.User != nil:
			out = append(out, author(e.User))
		case e.IsMention():
			name := strings.TrimPrefix(entityText(content, e), "@")
			if u, ok := t.lookup(name); ok {
				out = append(out, author(&u))
			}
		}
	}
	return out
}

func (t *TelegramChannel) remember(u *tgbotapi.User) {
	if u.UserName == "" {
		return
	}
	t.mu.Lock()
	t.known[strings.ToLower(u.UserName)] = *u
	t.mu.Unlock()
}

func (t *TelegramChannel) lookup(username string) (tgbotapi.User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.known[strings.ToLower(username)]
	return u, ok
}

func author(u *tgbotapi.User) bus.Author {
	if u == nil {
		return bus.Author{}
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return bus.Author{ID: strconv.FormatInt(u.ID, 10), Name: name, Bot: u.IsBot}
}

// entityText slices content by an entity, whose offsets count UTF-16 units.
func entityText(content string, e tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(content))
	if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.logger.Info("stopped")
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
	t.self = bot.GetSelf()
	t.remember(&t.self)
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}
	replyTo, _ := strconv.Atoi(msg.ReplyTo)

	content := toTelegramHTML(msg.Content)

	// Telegram has a 4096 char limit per message
	const maxLen = 4000
	for len(content) > 0 {
		chunk := content
		if len(chunk) > maxLen {
			idx := strings.LastIndex(chunk[:maxLen], "\n")
			if idx > 0 {
				chunk = chunk[:idx]
			} else {
				chunk = chunk[:maxLen]
			}
		}
		content = content[len(chunk):]

		tgMsg := tgbotapi.NewMessage(chatID, chunk)
		tgMsg.ParseMode = tgbotapi.ModeHTML
		tgMsg.ReplyToMessageID = replyTo
		replyTo = 0
		if _, err := t.bot.Send(tgMsg); err != nil {
			// Retry without HTML parse mode
			tgMsg.ParseMode = ""
			tgMsg.Text = msg.Content
			if _, err2 := t.bot.Send(tgMsg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
			return nil
		}
	}
	return nil
}

// toTelegramHTML converts basic markdown to Telegram HTML.
func toTelegramHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")

	s = wrapPairs(s, "```", "<pre>", "</pre>", stripLanguageTag)
	s = wrapPairs(s, "`", "<code>", "</code>", nil)
	s = wrapPairs(s, "**", "<b>", "</b>", nil)
	// after bold, so ** is already consumed
	s = wrapPairs(s, "*", "<i>", "</i>", nil)
	return s
}

// wrapPairs replaces each delim...delim pair with openTag...closeTag, passing the
// inner text through fn when set. An unmatched delimiter is left alone.
func wrapPairs(s, delim, openTag, closeTag string, fn func(string) string) string {
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			return s
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			return s
		}
		end += start + len(delim)
		inner := s[start+len(delim) : end]
		if fn != nil {
			inner = fn(inner)
		}
		s = s[:start] + openTag + inner + closeTag + s[end+len(delim):]
	}
}

func stripLanguageTag(code string) string {
	if nl := strings.Index(code, "\n"); nl >= 0 {
		firstLine := strings.TrimSpace(code[:nl])
		if len(firstLine) > 0 && !strings.Contains(firstLine, " ") {
			return code[nl+1:]
		}
	}
	return code
}
