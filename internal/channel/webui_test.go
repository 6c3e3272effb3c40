package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/stellarlinkco/moodclaw/internal/bus"
	"github.com/stellarlinkco/moodclaw/internal/config"
)

func startWebUI(t *testing.T, port int) (*WebUIChannel, *bus.MessageBus, context.Context) {
	t.Helper()
	b := bus.NewMessageBus(10)
	ch, err := NewWebUIChannel(config.WebUIConfig{Enabled: true}, config.GatewayConfig{Host: "127.0.0.1", Port: port}, b)
	if err != nil {
		t.Fatalf("NewWebUIChannel: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := ch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { ch.Stop() })
	return ch, b, ctx
}

func dial(t *testing.T, ctx context.Context, ch *WebUIChannel) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+ch.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func TestNewWebUIChannel(t *testing.T) {
	b := bus.NewMessageBus(10)

	ch, err := NewWebUIChannel(config.WebUIConfig{Enabled: true}, config.GatewayConfig{Port: 0}, b)
	if err != nil {
		t.Fatalf("NewWebUIChannel: %v", err)
	}
	if ch.Name() != "webui" {
		t.Errorf("Name() = %q, want %q", ch.Name(), "webui")
	}
	if !strings.HasSuffix(ch.Addr(), ":18790") {
		t.Errorf("Addr() = %q, want default port", ch.Addr())
	}
}

func TestWebUIChannel_StartStop(t *testing.T) {
	ch, _, _ := startWebUI(t, 19876)

	resp, err := http.Get("http://" + ch.Addr() + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}

	if err := ch.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestWebUIChannel_WebSocket(t *testing.T) {
	ch, b, ctx := startWebUI(t, 19877)
	conn := dial(t, ctx, ch)

	data, _ := json.Marshal(wsMessage{Type: "message", Content: "hello from test", Name: "Ann", ReplyTo: "earlier answer"})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("ws write: %v", err)
	}

	select {
	case in := <-b.Inbound:
		if in.Channel != "webui" {
			t.Errorf("channel = %q, want %q", in.Channel, "webui")
		}
		if in.Content != "hello from test" {
			t.Errorf("content = %q, want %q", in.Content, "hello from test")
		}
		if !strings.HasPrefix(in.ChatID, "webui-") || in.Sender.ID != in.ChatID {
			t.Errorf("chatID = %q sender = %q, want one webui- id", in.ChatID, in.Sender.ID)
		}
		if in.Sender.Name != "Ann" {
			t.Errorf("sender name = %q, want Ann", in.Sender.Name)
		}
		if len(in.ReplyChain) != 1 || in.ReplyChain[0].Content != "earlier answer" {
			t.Errorf("reply chain = %+v", in.ReplyChain)
		}

		if err := ch.Send(bus.OutboundMessage{
			Channel: "webui",
			ChatID:  in.ChatID,
			Content: "reply from bot",
		}); err != nil {
			t.Fatalf("Send: %v", err)
		}

		_, respData, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("ws read: %v", err)
		}
		var resp wsMessage
		if err := json.Unmarshal(respData, &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Type != "message" || resp.Content != "reply from bot" {
			t.Errorf("resp = %+v", resp)
		}

	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestWebUIChannel_DefaultName(t *testing.T) {
	ch, b, ctx := startWebUI(t, 19879)
	conn := dial(t, ctx, ch)

	data, _ := json.Marshal(wsMessage{Type: "message", Content: "hi"})
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatal(err)
	}

	select {
	case in := <-b.Inbound:
		if in.Sender.Name != "guest" {
			t.Errorf("sender name = %q, want guest", in.Sender.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestWebUIChannel_SendBroadcast(t *testing.T) {
	ch, _, ctx := startWebUI(t, 19878)

	conn1 := dial(t, ctx, ch)
	conn2 := dial(t, ctx, ch)

	time.Sleep(100 * time.Millisecond)

	if err := ch.Send(bus.OutboundMessage{
		Channel: "webui",
		ChatID:  "unknown-id",
		Content: "broadcast msg",
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		readCtx, readCancel := context.WithTimeout(ctx, 3*time.Second)
		_, data, err := conn.Read(readCtx)
		readCancel()
		if err != nil {
			t.Fatalf("client %d read: %v", i+1, err)
		}
		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("client %d unmarshal: %v", i+1, err)
		}
		if msg.Content != "broadcast msg" {
			t.Errorf("client %d content = %q, want %q", i+1, msg.Content, "broadcast msg")
		}
	}
}
