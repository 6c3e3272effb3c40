package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/config"
)

//go:embed static
var staticFiles embed.FS

const (
	webUIChannelName = "webui"
	webUIWriteWait   = 5 * time.Second
)

// wsMessage is the browser wire format. Name is how the sender wants to be
// addressed and is optional.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Name    string `json:"name,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	id   string
}

// WebUIChannel serves a single-page chat and talks to it over websockets.
// Every connection is its own chat and its own user.
type WebUIChannel struct {
	BaseChannel
	addr    string
	ln      net.Listener
	server  *http.Server
	clients sync.Map
}

func NewWebUIChannel(cfg config.WebUIConfig, gwCfg config.GatewayConfig, b *bus.MessageBus) (*WebUIChannel, error) {
	port := gwCfg.Port
	if port == 0 {
		port = config.DefaultPort
	}

	ch := &WebUIChannel{
		BaseChannel: NewBaseChannel(webUIChannelName, b, cfg.AllowFrom),
		addr:        net.JoinHostPort(gwCfg.Host, strconv.Itoa(port)),
	}
	return ch, nil
}

func (w *WebUIChannel) Start(ctx context.Context) error {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return fmt.Errorf("embed static fs: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(staticFS)))
	mux.HandleFunc("/ws", func(wr http.ResponseWriter, r *http.Request) {
		w.handleWS(ctx, wr, r)
	})

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", w.addr, err)
	}
	w.ln = ln
	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		w.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := w.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr is the bound listen address once started.
func (w *WebUIChannel) Addr() string {
	if w.ln == nil {
		return w.addr
	}
	return w.ln.Addr().String()
}

func (w *WebUIChannel) handleWS(ctx context.Context, wr http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(wr, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		w.logger.Warn("websocket accept", zap.Error(err))
		return
	}

	clientID := "webui-" + uuid.NewString()
	w.clients.Store(clientID, &wsClient{conn: conn, id: clientID})
	w.logger.Debug("client connected", zap.String("client", clientID))

	defer func() {
		w.clients.Delete(clientID)
		conn.CloseNow()
		w.logger.Debug("client disconnected", zap.String("client", clientID))
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.Type != "message" || strings.TrimSpace(msg.Content) == "" {
			continue
		}

		if !w.IsAllowed(clientID) {
			w.logger.Info("rejected message", zap.String("client", clientID))
			continue
		}

		name := strings.TrimSpace(msg.Name)
		if name == "" {
			name = "guest"
		}
		in := bus.InboundMessage{
			ID:        uuid.NewString(),
			Channel:   webUIChannelName,
			Sender:    bus.Author{ID: clientID, Name: name},
			ChatID:    clientID,
			Content:   msg.Content,
			Timestamp: time.Now(),
		}
		if msg.ReplyTo != "" {
			in.ReplyChain = []bus.ChainMessage{{Author: bus.Author{Name: "You"}, Content: msg.ReplyTo}}
		}
		if !w.publish(ctx, in) {
			return
		}
	}
}

// Send writes to the client that owns msg.ChatID, or to every client when
// that chat is gone.
func (w *WebUIChannel) Send(msg bus.OutboundMessage) error {
	data, err := json.Marshal(wsMessage{
		Type:    "message",
		Content: msg.Content,
	})
	if err != nil {
		return err
	}

	client, ok := w.clients.Load(msg.ChatID)
	if !ok {
		w.clients.Range(func(key, value any) bool {
			_ = w.write(value.(*wsClient), data)
			return true
		})
		return nil
	}
	return w.write(client.(*wsClient), data)
}

func (w *WebUIChannel) write(c *wsClient, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), webUIWriteWait)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (w *WebUIChannel) Stop() error {
	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), webUIWriteWait)
		defer cancel()
		if err := w.server.Shutdown(ctx); err != nil {
			w.logger.Warn("shutdown", zap.Error(err))
		}
	}
	w.clients.Range(func(key, value any) bool {
		value.(*wsClient).conn.CloseNow()
		return true
	})
	w.logger.Info("stopped")
	return nil
}
