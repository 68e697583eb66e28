package room

import (
	"errors"

	"github.com/Icerzack/chatroom/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidPassword = errors.New("invalid room password")
)

// Storage is the room registry: room code to password and member set.
type Storage interface {
	// Ensure creates the room if absent. An existing room is returned
	// unchanged and the password argument is ignored.
	Ensure(code, password string) (*models.Room, bool)

	// CheckPassword reports whether password may join code. Absent rooms
	// accept any password.
	CheckPassword(code, password string) bool

	// JoinChecked performs check-or-create and member insertion as one
	// step and returns the resulting member count.
	JoinChecked(code, password, connID string) (int, error)

	AddMember(code, connID string) error

	// RemoveMember deletes the room once its last member leaves and
	// returns how many members remain.
	RemoveMember(code, connID string) (int, error)

	MemberCount(code string) int
	IsEmpty(code string) bool
	IsMember(code, connID string) bool
	RoomsOf(connID string) []string

	Get(code string) (*models.Room, error)
	Delete(code string) error
	Len() int
}
