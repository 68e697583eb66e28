package models

// Participant is a struct that represents a connected chat user.
type Participant struct {
	// ConnectionID is the transport assigned identifier of the connection.
	ConnectionID string

	// DisplayName is the last name the connection joined a room with.
	DisplayName string
}
