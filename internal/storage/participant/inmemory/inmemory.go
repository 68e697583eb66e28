package inmemory

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/chatroom/internal/models"
	"github.com/Icerzack/chatroom/internal/storage/participant"
)

var _ participant.Storage = (*Storage)(nil)

type Storage struct {
	data   map[string]*models.Participant
	logger *zap.Logger

	mtx *sync.Mutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[string]*models.Participant),
		logger: logger,
		mtx:    &sync.Mutex{},
	}
}

func (s *Storage) Set(key string, value *models.Participant) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data[key] = value
	s.logger.Debug("participant added to storage", zap.String("connID", key))
	return nil
}

func (s *Storage) Get(key string) (*models.Participant, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, participant.ErrParticipantNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *Storage) Delete(key string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.data[key]; !ok {
		return participant.ErrParticipantNotFound
	}
	delete(s.data, key)
	s.logger.Debug("participant deleted from storage", zap.String("connID", key))
	return nil
}

func (s *Storage) SetName(connID, name string) {
	_ = s.Set(connID, &models.Participant{ConnectionID: connID, DisplayName: name})
}

func (s *Storage) GetName(connID string) (string, bool) {
	p, err := s.Get(connID)
	if err != nil {
		return "", false
	}
	return p.DisplayName, true
}

func (s *Storage) Remove(connID string) {
	_ = s.Delete(connID)
}

func (s *Storage) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.data)
}
