package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shopassist/internal/router"
)

// DefaultChannelID is used when a message arrives without a ChannelID.
const DefaultChannelID = "default"

// WSMessage is the websocket protocol.
// Example: {"type": "chat", "content": "how much is a kindle?", "channelId": "web-1"}
type WSMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	ChannelID string `json:"channelId,omitempty"`
}

// Message types.
const (
	wsChat        = "chat"
	wsReset       = "reset"
	wsError       = "error"
	wsTypingStart = "typing_start"
	wsTypingStop  = "typing_stop"
)

// jsonMarshal encodes outgoing frames; tests may replace it.
var (
	jsonMarshalMu sync.RWMutex
	jsonMarshal   = json.Marshal
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS upgrades to a websocket and answers "chat" frames through a
// per-connection router, so each channelId keeps its own history. "reset"
// clears a channel's history. Only GET is accepted for the handshake.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(r.Context(), w, newAPIError("method_not_allowed", "websocket handshake requires GET", http.StatusMethodNotAllowed))
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	rt := router.NewRouter(s.svc)
	defer rt.Close()

	var writeMu sync.Mutex
	send := func(m WSMessage) { writeWSMessage(conn, &writeMu, &m) }

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in WSMessage
		if err := json.Unmarshal(raw, &in); err != nil {
			send(WSMessage{Type: wsError, Content: "invalid JSON"})
			continue
		}
		channelID := in.ChannelID
		if channelID == "" {
			channelID = DefaultChannelID
		}

		switch in.Type {
		case wsChat:
			send(WSMessage{Type: wsTypingStart, ChannelID: channelID})
			reply, err := s.routeWS(r.Context(), rt, channelID, in.Content)
			if err != nil {
				send(WSMessage{Type: wsError, Content: err.Error(), ChannelID: channelID})
			} else {
				send(WSMessage{Type: wsChat, Content: reply, ChannelID: channelID})
			}
			send(WSMessage{Type: wsTypingStop, ChannelID: channelID})
		case wsReset:
			rt.Reset(channelID)
			send(WSMessage{Type: wsReset, Content: "history cleared", ChannelID: channelID})
		default:
			send(WSMessage{Type: wsError, Content: "unsupported message type " + in.Type, ChannelID: channelID})
		}
	}
}

// routeWS runs one chat turn under the request timeout. Errors are reduced to
// the envelope message the HTTP API would return.
func (s *Server) routeWS(ctx context.Context, rt *router.Router, channelID, content string) (string, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.RequestTimeout)*time.Second)
		defer cancel()
	}
	reply, err := rt.Route(ctx, channelID, content)
	if err != nil {
		e := errorFor(err)
		if e.Status >= http.StatusInternalServerError {
			s.logger.Error("ws chat failed", "channel", channelID, "error", err)
		}
		return "", errors.New(e.Message)
	}
	return reply, nil
}

func writeWSMessage(conn *websocket.Conn, mu *sync.Mutex, msg *WSMessage) {
	jsonMarshalMu.RLock()
	marshal := jsonMarshal
	jsonMarshalMu.RUnlock()
	data, err := marshal(msg)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
