package relay

const (
	EventJoinRoom    = "join_room"
	EventSendMessage = "send_message"

	EventError     = "error"
	EventUserCount = "user_count"
	EventMessage   = "message"
)

const (
	UserSystem = "system"
	UserMe     = "me"

	ColorGreen = "green"
	ColorBlue  = "blue"

	MsgInvalidPassword = "Invalid room password"

	timestampLayout = "15:04:05"
)

type JoinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type SendMessageRequest struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// ChatMessage is the payload of the outbound message event. User is nil
// when the sender never recorded a display name.
type ChatMessage struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
	User      *string `json:"user,omitempty"`
	Color     string  `json:"color"`
}

func strPtr(s string) *string {
	return &s
}
