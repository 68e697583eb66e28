package rest

import (
	"go.uber.org/zap"
)

type Config struct {
	// Port is the port where the server will listen
	Port int

	// AllowedOrigin is the browser origin allowed by CORS and the WebSocket
	// upgrader, "*" allows any origin
	AllowedOrigin string

	// MaxMessageSize limits inbound WebSocket frames in bytes
	MaxMessageSize int64

	// SendBuffer is the outbound queue length of each connection
	SendBuffer int

	// QueueSize is the length of the event queue in front of the dispatcher
	QueueSize int

	RoomsStorageType        string
	ParticipantsStorageType string

	Logger *zap.Logger
}
