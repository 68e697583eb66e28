package participant

import (
	"errors"

	"github.com/Icerzack/chatroom/internal/models"
)

const (
	InMemoryStorageType = "in-memory"
)

var ErrParticipantNotFound = errors.New("participant not found")

// Storage is the participant directory keyed by connection id.
type Storage interface {
	Set(key string, value *models.Participant) error
	Get(key string) (*models.Participant, error)
	Delete(key string) error

	SetName(connID, name string)
	GetName(connID string) (string, bool)
	Remove(connID string)
	Len() int
}
