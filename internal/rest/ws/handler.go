package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Icerzack/chatroom/internal/pubsub"
	"github.com/Icerzack/chatroom/internal/relay"
)

var ErrInvalidMessage = errors.New("invalid message")

type WebSocketHandler struct {
	// upgrader is used to upgrade the HTTP connection to a WebSocket connection
	upgrader *websocket.Upgrader

	// hub fans events out to the connected clients
	hub *pubsub.Hub

	// dispatcher runs the room protocol on a single goroutine
	dispatcher *relay.Dispatcher

	// maxMessageSize limits inbound frames, zero means unlimited
	maxMessageSize int64

	// sendBuffer is the per-connection outbound queue length
	sendBuffer int

	logger *zap.Logger
}

func NewWebSocketHandler(
	hub *pubsub.Hub,
	dispatcher *relay.Dispatcher,
	allowedOrigin string,
	maxMessageSize int64,
	sendBuffer int,
	logger *zap.Logger,
) *WebSocketHandler {
	ws := &WebSocketHandler{
		hub:            hub,
		dispatcher:     dispatcher,
		maxMessageSize: maxMessageSize,
		sendBuffer:     sendBuffer,
		logger:         logger,
	}
	ws.upgrader = &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     ws.originChecker(allowedOrigin),
	}
	return ws
}

func (ws *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	connID := uuid.NewString()
	c := newClient(connID, conn, ws.sendBuffer, ws.logger)
	if !ws.hub.Register(connID, c) {
		ws.logger.Info("Hub closed, rejecting connection")
		_ = conn.Close()
		return
	}
	go c.writePump()

	ctx := context.Background()
	ws.dispatcher.Dispatch(ctx, relay.Event{ConnID: connID, Name: relay.EventConnect})

	c.setupRead(ws.maxMessageSize)
	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil || mt == websocket.CloseMessage {
			break
		}
		ev, err := parseEvent(connID, msg)
		if err != nil {
			ws.logger.Debug("Failed to define message", zap.String("connID", connID), zap.Error(err))
			continue
		}
		if !ws.dispatcher.Dispatch(ctx, ev) {
			break
		}
	}

	ws.dispatcher.Dispatch(ctx, relay.Event{ConnID: connID, Name: relay.EventDisconnect})
	ws.hub.Unregister(connID)
	ws.logger.Info("Connection closed", zap.String("connID", connID))
}

func parseEvent(connID string, msg []byte) (relay.Event, error) {
	var message Message
	if err := json.Unmarshal(msg, &message); err != nil {
		return relay.Event{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if !relay.IsClientEvent(message.Event) {
		return relay.Event{}, fmt.Errorf("%q: %w", message.Event, relay.ErrUnknownEvent)
	}
	return relay.Event{ConnID: connID, Name: message.Event, Data: message.Data}, nil
}

// originChecker accepts requests without an Origin header, since only
// browsers send one, and browser requests from the allowed origin.
func (ws *WebSocketHandler) originChecker(allowed string) func(*http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return func(*http.Request) bool { return true }
	}
	want, ok := normalizeOrigin(allowed)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		got, valid := normalizeOrigin(origin)
		if ok && valid && got == want {
			return true
		}
		ws.logger.Info("Blocked connection from disallowed origin", zap.String("origin", origin))
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
