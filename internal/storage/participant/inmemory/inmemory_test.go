package inmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Icerzack/chatroom/internal/models"
	"github.com/Icerzack/chatroom/internal/storage/participant"
)

func TestSetNameOverwrites(t *testing.T) {
	s := NewStorage(zaptest.NewLogger(t))

	_, ok := s.GetName("a")
	assert.False(t, ok)

	s.SetName("a", "alice")
	name, ok := s.GetName("a")
	require.True(t, ok)
	assert.Equal(t, "alice", name)

	s.SetName("a", "alicia")
	name, _ = s.GetName("a")
	assert.Equal(t, "alicia", name)
	assert.Equal(t, 1, s.Len())
}

func TestEmptyNameIsStillRecorded(t *testing.T) {
	s := NewStorage(zaptest.NewLogger(t))
	s.SetName("a", "")

	name, ok := s.GetName("a")
	assert.True(t, ok)
	assert.Equal(t, "", name)
}

func TestRemove(t *testing.T) {
	s := NewStorage(zaptest.NewLogger(t))
	s.SetName("a", "alice")

	s.Remove("a")
	_, ok := s.GetName("a")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Delete("a"), participant.ErrParticipantNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStorage(zaptest.NewLogger(t))
	require.NoError(t, s.Set("a", &models.Participant{ConnectionID: "a", DisplayName: "alice"}))

	p, err := s.Get("a")
	require.NoError(t, err)
	p.DisplayName = "mallory"

	name, _ := s.GetName("a")
	assert.Equal(t, "alice", name)

	_, err = s.Get("b")
	assert.ErrorIs(t, err, participant.ErrParticipantNotFound)
}
