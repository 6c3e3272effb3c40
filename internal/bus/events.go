package bus

import (
	"time"
)

// Author identifies who wrote a message.
type Author struct {
	ID   string
	Name string
	Bot  bool
}

// ChainMessage is an ancestor of the inbound message in its reply chain.
type ChainMessage struct {
	Author  Author
	Content string
}

// InboundMessage is a message from a chat platform. ReplyChain holds the
// replied-to ancestors, oldest first.
type InboundMessage struct {
	ID         string
	Channel    string
	Sender     Author
	ChatID     string
	Content    string
	Timestamp  time.Time
	ReplyChain []ChainMessage
	Mentions   []Author
	Metadata   map[string]any
}

// SessionKey scopes channel history: one ring per chat per platform.
func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + m.ChatID
}

// UserKey scopes per-user state so ids from different platforms never collide.
func (m *InboundMessage) UserKey() string {
	return m.Channel + ":" + m.Sender.ID
}

type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	ReplyTo  string
	Metadata map[string]any
}
