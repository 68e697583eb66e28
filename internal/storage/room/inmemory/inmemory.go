package inmemory

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Icerzack/chatroom/internal/models"
	"github.com/Icerzack/chatroom/internal/storage/room"
)

var _ room.Storage = (*Storage)(nil)

type Storage struct {
	data   map[string]*models.Room
	logger *zap.Logger

	mtx *sync.Mutex
}

func NewStorage(logger *zap.Logger) *Storage {
	return &Storage{
		data:   make(map[string]*models.Room),
		logger: logger,
		mtx:    &sync.Mutex{},
	}
}

func (s *Storage) Ensure(code, password string) (*models.Room, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	r, created := s.ensureLocked(code, password)
	return r.Clone(), created
}

func (s *Storage) ensureLocked(code, password string) (*models.Room, bool) {
	if v, ok := s.data[code]; ok {
		return v, false
	}
	v := models.NewRoom(code, password)
	s.data[code] = v
	s.logger.Info("room added to storage", zap.String("roomCode", code))
	return v, true
}

func (s *Storage) CheckPassword(code, password string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[code]
	return !ok || v.Password == password
}

func (s *Storage) JoinChecked(code, password, connID string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if v, ok := s.data[code]; ok && v.Password != password {
		s.logger.Debug("password mismatch", zap.String("roomCode", code), zap.String("connID", connID))
		return 0, room.ErrInvalidPassword
	}
	v, _ := s.ensureLocked(code, password)
	v.AddMember(connID)
	return v.Size(), nil
}

func (s *Storage) AddMember(code, connID string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[code]
	if !ok {
		return room.ErrRoomNotFound
	}
	v.AddMember(connID)
	return nil
}

func (s *Storage) RemoveMember(code, connID string) (int, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[code]
	if !ok {
		return 0, room.ErrRoomNotFound
	}
	v.RemoveMember(connID)
	if v.Size() == 0 {
		delete(s.data, code)
		s.logger.Info("room deleted from storage", zap.String("roomCode", code))
	}
	return v.Size(), nil
}

func (s *Storage) MemberCount(code string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if v, ok := s.data[code]; ok {
		return v.Size()
	}
	return 0
}

func (s *Storage) IsEmpty(code string) bool {
	return s.MemberCount(code) == 0
}

func (s *Storage) IsMember(code, connID string) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[code]
	return ok && v.HasMember(connID)
}

// RoomsOf returns the codes in lexical order so disconnect handling is
// deterministic.
func (s *Storage) RoomsOf(connID string) []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	var codes []string
	for code, v := range s.data {
		if v.HasMember(connID) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

func (s *Storage) Get(code string) (*models.Room, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	v, ok := s.data[code]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return v.Clone(), nil
}

func (s *Storage) Delete(code string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.data, code)
	s.logger.Info("room deleted from storage", zap.String("roomCode", code))
	return nil
}

func (s *Storage) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.data)
}
