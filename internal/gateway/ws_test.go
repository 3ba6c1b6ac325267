package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"shopassist/internal/brain"
	"shopassist/internal/domain"
)

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(srv.Handler())
	t.Cleanup(server.Close)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var out WSMessage
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return out
}

// chatExchange sends one chat frame and returns the reply between the typing frames.
func chatExchange(t *testing.T, conn *websocket.Conn, in WSMessage) WSMessage {
	t.Helper()
	if err := conn.WriteJSON(in); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if m := readWS(t, conn); m.Type != wsTypingStart {
		t.Fatalf("expected typing_start, got %+v", m)
	}
	reply := readWS(t, conn)
	if m := readWS(t, conn); m.Type != wsTypingStop {
		t.Fatalf("expected typing_stop, got %+v", m)
	}
	return reply
}

func TestHandleWS_WhenChatSent_ShouldReplyOnDefaultChannel(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	reply := chatExchange(t, conn, WSMessage{Type: "chat", Content: "hello"})
	if reply.Type != "chat" || reply.Content != "re: hello (0)" || reply.ChannelID != DefaultChannelID {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestHandleWS_WhenSameChannel_ShouldCarryHistory(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	chatExchange(t, conn, WSMessage{Type: "chat", Content: "one", ChannelID: "web-1"})
	reply := chatExchange(t, conn, WSMessage{Type: "chat", Content: "two", ChannelID: "web-1"})
	if reply.Content != "re: two (2)" {
		t.Errorf("second message should see two history turns, got %q", reply.Content)
	}
	other := chatExchange(t, conn, WSMessage{Type: "chat", Content: "three", ChannelID: "web-2"})
	if other.Content != "re: three (0)" {
		t.Errorf("other channel should start fresh, got %q", other.Content)
	}
}

func TestHandleWS_WhenReset_ShouldClearHistory(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	chatExchange(t, conn, WSMessage{Type: "chat", Content: "one", ChannelID: "c"})
	if err := conn.WriteJSON(WSMessage{Type: "reset", ChannelID: "c"}); err != nil {
		t.Fatal(err)
	}
	if m := readWS(t, conn); m.Type != "reset" || m.ChannelID != "c" {
		t.Fatalf("unexpected reset ack %+v", m)
	}
	if reply := chatExchange(t, conn, WSMessage{Type: "chat", Content: "two", ChannelID: "c"}); reply.Content != "re: two (0)" {
		t.Errorf("history should be cleared, got %q", reply.Content)
	}
}

func TestHandleWS_WhenServiceFails_ShouldSendErrorFrame(t *testing.T) {
	svc := &fakeService{chatErr: errors.Join(brain.ErrModelUnavailable, errors.New("429"))}
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, svc))

	reply := chatExchange(t, conn, WSMessage{Type: "chat", Content: "hi"})
	if reply.Type != "error" || !strings.Contains(reply.Content, "model unavailable") {
		t.Errorf("unexpected reply %+v", reply)
	}
}

func TestHandleWS_WhenInvalidJSONSent_ShouldReturnErrorType(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if out := readWS(t, conn); out.Type != "error" || out.Content != "invalid JSON" {
		t.Errorf("unexpected frame %+v", out)
	}
}

func TestHandleWS_WhenUnknownType_ShouldReturnErrorType(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	if err := conn.WriteJSON(WSMessage{Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	if out := readWS(t, conn); out.Type != "error" || !strings.Contains(out.Content, "dance") {
		t.Errorf("unexpected frame %+v", out)
	}
}

func TestHandleWS_WhenMarshalFails_ShouldDropFrame(t *testing.T) {
	conn := dialWS(t, newTestServer(t, domain.GatewayConfig{}, &fakeService{}))

	jsonMarshalMu.Lock()
	old := jsonMarshal
	jsonMarshal = func(any) ([]byte, error) { return nil, errors.New("marshal failed") }
	jsonMarshalMu.Unlock()
	defer func() {
		jsonMarshalMu.Lock()
		jsonMarshal = old
		jsonMarshalMu.Unlock()
	}()

	if err := conn.WriteJSON(WSMessage{Type: "dance"}); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("no frame should be written when marshalling fails")
	}
}

func TestHandleWS_WhenMethodNotGet_ShouldReturn405(t *testing.T) {
	srv := newTestServer(t, domain.GatewayConfig{}, &fakeService{})
	rec := do(t, srv.Handler(), http.MethodPost, "/ws", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("want 405, got %d", rec.Code)
	}
}

func TestHandleWS_WhenAuthRequired_ShouldRejectHandshakeWithoutToken(t *testing.T) {
	srv := newTestServer(t, domain.GatewayConfig{AuthToken: "s3cret"}, &fakeService{})
	server := httptest.NewServer(srv.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 response, got %+v", resp)
	}

	header := http.Header{"Authorization": []string{"Bearer s3cret"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("authorized dial failed: %v", err)
	}
	conn.Close()
}
