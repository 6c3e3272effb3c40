// Package bus connects chat channels to the gateway with buffered inbound
// and outbound queues.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type OutboundHandler func(msg OutboundMessage)

type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu       sync.RWMutex
	handlers map[string]OutboundHandler
	logger   *zap.Logger
}

func NewMessageBus(bufSize int) *MessageBus {
	return &MessageBus{
		Inbound:  make(chan InboundMessage, bufSize),
		Outbound: make(chan OutboundMessage, bufSize),
		handlers: make(map[string]OutboundHandler),
		logger:   zap.NewNop(),
	}
}

func (b *MessageBus) SetLogger(logger *zap.Logger) {
	if logger != nil {
		b.logger = logger.Named("bus")
	}
}

// SubscribeOutbound routes outbound messages for channel to fn. A later
// subscription for the same channel replaces the earlier one.
func (b *MessageBus) SubscribeOutbound(channel string, fn OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[channel] = fn
}

// DispatchOutbound delivers outbound messages to their channel handlers
// until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn, ok := b.handlers[msg.Channel]
			b.mu.RUnlock()
			if !ok {
				b.logger.Warn("no handler for outbound message", zap.String("channel", msg.Channel))
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return
		}
	}
}
