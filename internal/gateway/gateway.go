package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/channel"
	"github.com/stellarlinkco/moodclaw/internal/config"
	"github.com/stellarlinkco/moodclaw/internal/conversation"
	"github.com/stellarlinkco/moodclaw/internal/cron"
	"github.com/stellarlinkco/moodclaw/internal/generate"
	"github.com/stellarlinkco/moodclaw/internal/metrics"
)

// GeneratorFactory creates the generation provider (allows injection for tests).
type GeneratorFactory func(ctx context.Context, cfg *config.Config) (generate.Generator, error)

// Options for creating a Gateway
type Options struct {
	GeneratorFactory GeneratorFactory
	Logger           *zap.Logger
	SignalChan       chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	logger     *zap.Logger
	bus        *bus.MessageBus
	state      *State
	pipeline   *conversation.Pipeline
	channels   *channel.ChannelManager
	cron       *cron.Service
	registry   *prometheus.Registry
	metricsSrv *http.Server
	signalChan chan os.Signal
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		cfg:        cfg,
		logger:     logger.Named("gateway"),
		signalChan: opts.SignalChan,
		registry:   metrics.NewRegistry(),
	}
	m := metrics.New(g.registry)

	g.bus = bus.NewMessageBus(config.DefaultBufSize)
	g.bus.SetLogger(logger)

	state, err := OpenState(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	g.state = state

	factory := opts.GeneratorFactory
	if factory == nil {
		factory = generate.New
	}
	gen, err := factory(context.Background(), cfg)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("create generator: %w", err)
	}

	g.pipeline, err = NewPipeline(cfg, state, gen, m, logger)
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	g.cron = cron.NewService(logger)
	if err := g.cron.Add(cron.DecayJob(cfg.Personality.DecaySchedule, state.Traits, nil)); err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("schedule decay: %w", err)
	}

	chMgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, g.bus, logger)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("create channel manager: %w", err)
	}
	g.channels = chMgr

	return g, nil
}

func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.bus.DispatchOutbound(ctx)

	if err := g.channels.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	g.logger.Info("channels started", zap.Strings("channels", g.channels.EnabledChannels()))

	if err := g.cron.Start(ctx); err != nil {
		g.logger.Warn("cron start", zap.Error(err))
	}
	if err := g.startMetrics(); err != nil {
		g.logger.Warn("metrics server", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.processLoop(ctx)
	}()

	g.logger.Info("running",
		zap.String("host", g.cfg.Gateway.Host),
		zap.Int("port", g.cfg.Gateway.Port),
	)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
	}
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")
	cancel()
	<-done
	return g.Shutdown()
}

// processLoop hands each inbound message to a worker, at most
// gateway.maxConcurrent at a time, and waits for in-flight turns on exit.
func (g *Gateway) processLoop(ctx context.Context) {
	var workers errgroup.Group
	workers.SetLimit(max(g.cfg.Gateway.MaxConcurrent, 1))
	defer workers.Wait()

	for {
		select {
		case msg := <-g.bus.Inbound:
			g.logger.Debug("inbound",
				zap.String("channel", msg.Channel),
				zap.String("sender", msg.Sender.ID),
				zap.String("text", truncate(msg.Content, 80)),
			)
			workers.Go(func() error {
				g.handle(ctx, msg)
				return nil
			})
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) handle(ctx context.Context, msg bus.InboundMessage) {
	reply := g.pipeline.Handle(ctx, msg)
	if reply.Text == "" {
		return
	}
	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: reply.Text,
		ReplyTo: msg.ID,
		Metadata: map[string]any{
			"turn":    reply.TurnID,
			"outcome": reply.Outcome,
		},
	}
	select {
	case g.bus.Outbound <- out:
	case <-ctx.Done():
	}
}

func (g *Gateway) startMetrics() error {
	port := g.cfg.Gateway.MetricsPort
	if port <= 0 {
		return nil
	}
	addr := net.JoinHostPort(g.cfg.Gateway.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(g.registry))
	g.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := g.metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("metrics server", zap.Error(err))
		}
	}()
	g.logger.Info("metrics listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (g *Gateway) Shutdown() error {
	g.cron.Stop()
	_ = g.channels.StopAll()
	if g.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.metricsSrv.Shutdown(ctx); err != nil {
			g.logger.Warn("metrics shutdown", zap.Error(err))
		}
	}
	if err := g.state.Close(); err != nil {
		g.logger.Warn("close storage", zap.Error(err))
	}
	g.logger.Info("shutdown complete")
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
