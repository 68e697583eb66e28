package models

// Room is a password-gated chat channel.
type Room struct {
	// Code is the client supplied key of the room
	Code string

	// Password is set by whoever created the room
	Password string

	// Members holds the connection ids currently joined
	Members map[string]struct{}
}

// NewRoom creates an empty room.
func NewRoom(code, password string) *Room {
	return &Room{
		Code:     code,
		Password: password,
		Members:  make(map[string]struct{}),
	}
}

func (r *Room) AddMember(connID string) {
	r.Members[connID] = struct{}{}
}

func (r *Room) RemoveMember(connID string) {
	delete(r.Members, connID)
}

func (r *Room) HasMember(connID string) bool {
	_, ok := r.Members[connID]
	return ok
}

func (r *Room) Size() int {
	return len(r.Members)
}

// Clone returns a deep copy safe to hand out of a storage lock.
func (r *Room) Clone() *Room {
	c := NewRoom(r.Code, r.Password)
	for id := range r.Members {
		c.Members[id] = struct{}{}
	}
	return c
}
