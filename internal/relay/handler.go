// Package relay implements the chat room protocol: joining rooms,
// relaying messages and cleaning up after disconnects.
package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Icerzack/chatroom/internal/storage/participant"
	"github.com/Icerzack/chatroom/internal/storage/room"
)

// Transport is the publish-subscribe layer the handler emits through.
type Transport interface {
	Subscribe(connID, channel string)
	Unsubscribe(connID, channel string)
	Emit(connID, event string, data any)
	Broadcast(channel, event string, data any)
	BroadcastExcept(channel, exceptID, event string, data any)
}

type Handler struct {
	rooms        room.Storage
	participants participant.Storage
	transport    Transport

	ids *IDGenerator
	now func() time.Time

	logger *zap.Logger
}

type Option func(*Handler)

// WithClock overrides the clock used for timestamps and message ids.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
		h.ids = NewIDGenerator(now)
	}
}

func NewHandler(
	rooms room.Storage,
	participants participant.Storage,
	transport Transport,
	logger *zap.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		rooms:        rooms,
		participants: participants,
		transport:    transport,
		ids:          NewIDGenerator(time.Now),
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Connect(connID string) {
	h.logger.Info("User connected", zap.String("connID", connID))
}

func (h *Handler) Join(connID string, req JoinRoomRequest) {
	h.participants.SetName(connID, req.Username)

	count, err := h.rooms.JoinChecked(req.RoomCode, req.Password, connID)
	if err != nil {
		if errors.Is(err, room.ErrInvalidPassword) {
			h.logger.Info("Join rejected",
				zap.String("connID", connID),
				zap.String("roomCode", req.RoomCode),
				zap.Error(err),
			)
			h.transport.Emit(connID, EventError, MsgInvalidPassword)
			return
		}
		h.logger.Error("Join failed", zap.String("roomCode", req.RoomCode), zap.Error(err))
		return
	}

	h.transport.Subscribe(connID, req.RoomCode)
	h.transport.Broadcast(req.RoomCode, EventUserCount, count)
	h.transport.Broadcast(req.RoomCode, EventMessage, ChatMessage{
		ID:        h.ids.Next(),
		Text:      fmt.Sprintf("Room %s initialized. Encrypted channel established.", req.RoomCode),
		Timestamp: h.timestamp(),
		User:      strPtr(UserSystem),
		Color:     ColorGreen,
	})

	h.logger.Info("User joined room",
		zap.String("connID", connID),
		zap.String("roomCode", req.RoomCode),
		zap.Int("count", count),
	)
}

func (h *Handler) SendMessage(connID string, req SendMessageRequest) {
	if strings.TrimSpace(req.Message) == "" {
		return
	}
	if !h.rooms.IsMember(req.RoomCode, connID) {
		h.logger.Debug("Message from non-member ignored",
			zap.String("connID", connID),
			zap.String("roomCode", req.RoomCode),
		)
		return
	}

	timestamp := h.timestamp()

	h.transport.Emit(connID, EventMessage, ChatMessage{
		ID:        h.ids.Next(),
		Text:      req.Message,
		Timestamp: timestamp,
		User:      strPtr(UserMe),
		Color:     ColorBlue,
	})

	var sender *string
	if name, ok := h.participants.GetName(connID); ok {
		sender = strPtr(name)
	}
	h.transport.BroadcastExcept(req.RoomCode, connID, EventMessage, ChatMessage{
		ID:        h.ids.Next(),
		Text:      req.Message,
		Timestamp: timestamp,
		User:      sender,
		Color:     ColorBlue,
	})
}

func (h *Handler) Disconnect(connID string) {
	h.logger.Info("User disconnected", zap.String("connID", connID))

	for _, code := range h.rooms.RoomsOf(connID) {
		h.transport.Unsubscribe(connID, code)
		remaining, err := h.rooms.RemoveMember(code, connID)
		if err != nil {
			h.logger.Debug("Room vanished during disconnect", zap.String("roomCode", code), zap.Error(err))
			continue
		}
		if remaining == 0 {
			continue
		}
		h.transport.Broadcast(code, EventUserCount, remaining)
	}

	h.participants.Remove(connID)
}

func (h *Handler) timestamp() string {
	return h.now().Format(timestampLayout)
}
