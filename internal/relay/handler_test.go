package relay

import (
	"encoding/json"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Icerzack/chatroom/internal/pubsub"
	participantMem "github.com/Icerzack/chatroom/internal/storage/participant/inmemory"
	roomMem "github.com/Icerzack/chatroom/internal/storage/room/inmemory"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type recorder struct {
	mu     sync.Mutex
	frames []frame
}

func (r *recorder) Send(b []byte) bool {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return true
}

func (r *recorder) Close() {}

// take returns and clears the recorded frames.
func (r *recorder) take() []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

type fixture struct {
	t            *testing.T
	hub          *pubsub.Hub
	rooms        *roomMem.Storage
	participants *participantMem.Storage
	handler      *Handler
	conns        map[string]*recorder
}

var fixedNow = time.Date(2024, 5, 1, 21, 7, 9, 0, time.Local)

func newFixture(t *testing.T) *fixture {
	logger := zaptest.NewLogger(t)
	f := &fixture{
		t:            t,
		hub:          pubsub.NewHub(logger),
		rooms:        roomMem.NewStorage(logger),
		participants: participantMem.NewStorage(logger),
		conns:        make(map[string]*recorder),
	}
	f.handler = NewHandler(f.rooms, f.participants, f.hub, logger,
		WithClock(func() time.Time { return fixedNow }))
	return f
}

func (f *fixture) connect(id string) *recorder {
	r := &recorder{}
	f.conns[id] = r
	f.hub.Register(id, r)
	f.handler.Connect(id)
	return r
}

func (f *fixture) disconnect(id string) {
	f.handler.Disconnect(id)
	f.hub.Unregister(id)
}

func userCount(t *testing.T, fr frame) int {
	t.Helper()
	require.Equal(t, EventUserCount, fr.Event)
	var n int
	require.NoError(t, json.Unmarshal(fr.Data, &n))
	return n
}

func chatMessage(t *testing.T, fr frame) ChatMessage {
	t.Helper()
	require.Equal(t, EventMessage, fr.Event)
	var m ChatMessage
	require.NoError(t, json.Unmarshal(fr.Data, &m))
	return m
}

func TestFirstJoinCreatesRoom(t *testing.T) {
	f := newFixture(t)
	a := f.connect("a")

	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})

	r, err := f.rooms.Get("lobby")
	require.NoError(t, err)
	assert.Equal(t, "x", r.Password)
	assert.Equal(t, map[string]struct{}{"a": {}}, r.Members)
	assert.True(t, f.hub.IsSubscribed("a", "lobby"))

	frames := a.take()
	require.Len(t, frames, 2)
	assert.Equal(t, 1, userCount(t, frames[0]))

	sys := chatMessage(t, frames[1])
	assert.Equal(t, "Room lobby initialized. Encrypted channel established.", sys.Text)
	assert.Equal(t, "21:07:09", sys.Timestamp)
	require.NotNil(t, sys.User)
	assert.Equal(t, UserSystem, *sys.User)
	assert.Equal(t, ColorGreen, sys.Color)
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), sys.ID)
}

func TestWrongPasswordRejected(t *testing.T) {
	f := newFixture(t)
	f.connect("a")
	c := f.connect("c")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})

	f.handler.Join("c", JoinRoomRequest{RoomCode: "lobby", Password: "y", Username: "carl"})

	frames := c.take()
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
	var msg string
	require.NoError(t, json.Unmarshal(frames[0].Data, &msg))
	assert.Equal(t, MsgInvalidPassword, msg)

	assert.Equal(t, 1, f.rooms.MemberCount("lobby"))
	assert.False(t, f.hub.IsSubscribed("c", "lobby"))

	name, ok := f.participants.GetName("c")
	assert.True(t, ok, "name is recorded even when the join is rejected")
	assert.Equal(t, "carl", name)
}

func TestSystemMessageOnEveryJoin(t *testing.T) {
	f := newFixture(t)
	a := f.connect("a")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})

	frames := a.take()
	require.Len(t, frames, 4)
	assert.Equal(t, 1, userCount(t, frames[2]))
	first, second := chatMessage(t, frames[1]), chatMessage(t, frames[3])
	assert.Equal(t, first.Text, second.Text)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestMessageIgnoredWhenBlank(t *testing.T) {
	f := newFixture(t)
	a := f.connect("a")
	b := f.connect("b")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})
	f.handler.Join("b", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "bob"})
	a.take()
	b.take()

	f.handler.SendMessage("a", SendMessageRequest{RoomCode: "lobby", Message: " \t\n "})
	f.handler.SendMessage("a", SendMessageRequest{RoomCode: "lobby", Message: ""})

	assert.Empty(t, a.take())
	assert.Empty(t, b.take())
}

func TestMessageIgnoredFromNonMember(t *testing.T) {
	f := newFixture(t)
	a := f.connect("a")
	c := f.connect("c")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})
	a.take()

	f.handler.SendMessage("c", SendMessageRequest{RoomCode: "lobby", Message: "hi"})
	f.handler.SendMessage("c", SendMessageRequest{RoomCode: "nowhere", Message: "hi"})

	assert.Empty(t, a.take())
	assert.Empty(t, c.take())
}

func TestMessageFanOut(t *testing.T) {
	f := newFixture(t)
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		f.connect(id)
		f.handler.Join(id, JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "user-" + id})
	}
	for _, id := range ids {
		f.conns[id].take()
	}

	f.handler.SendMessage("b", SendMessageRequest{RoomCode: "lobby", Message: "  hi  "})

	own := f.conns["b"].take()
	require.Len(t, own, 1)
	me := chatMessage(t, own[0])
	require.NotNil(t, me.User)
	assert.Equal(t, UserMe, *me.User)
	assert.Equal(t, "  hi  ", me.Text)
	assert.Equal(t, ColorBlue, me.Color)

	received := 0
	for _, id := range []string{"a", "c", "d"} {
		frames := f.conns[id].take()
		require.Len(t, frames, 1)
		m := chatMessage(t, frames[0])
		require.NotNil(t, m.User)
		assert.Equal(t, "user-b", *m.User)
		assert.Equal(t, me.Text, m.Text)
		assert.Equal(t, me.Timestamp, m.Timestamp)
		assert.NotEqual(t, me.ID, m.ID)
		received++
	}
	assert.Equal(t, f.rooms.MemberCount("lobby")-1, received)
}

func TestMessageWithoutRecordedName(t *testing.T) {
	f := newFixture(t)
	f.connect("a")
	b := f.connect("b")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})
	f.handler.Join("b", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "bob"})
	b.take()
	f.participants.Remove("a")

	f.handler.SendMessage("a", SendMessageRequest{RoomCode: "lobby", Message: "hi"})

	frames := b.take()
	require.Len(t, frames, 1)
	assert.NotContains(t, string(frames[0].Data), `"user"`)
}

func TestRenameAppliesToEveryRoom(t *testing.T) {
	f := newFixture(t)
	f.connect("a")
	b := f.connect("b")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "one", Username: "alice"})
	f.handler.Join("b", JoinRoomRequest{RoomCode: "one", Username: "bob"})
	f.handler.Join("a", JoinRoomRequest{RoomCode: "two", Username: "alicia"})
	b.take()

	f.handler.SendMessage("a", SendMessageRequest{RoomCode: "one", Message: "hi"})

	m := chatMessage(t, b.take()[0])
	assert.Equal(t, "alicia", *m.User)
}

func TestJoinDisconnectCounts(t *testing.T) {
	f := newFixture(t)
	const k, m = 5, 3
	for i := 0; i < k; i++ {
		id := strconv.Itoa(i)
		f.connect(id)
		f.handler.Join(id, JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: id})
	}
	assert.Equal(t, k, f.rooms.MemberCount("lobby"))

	for i := 0; i < m; i++ {
		f.disconnect(strconv.Itoa(i))
	}
	assert.Equal(t, k-m, f.rooms.MemberCount("lobby"))

	for i := m; i < k; i++ {
		f.disconnect(strconv.Itoa(i))
	}
	_, err := f.rooms.Get("lobby")
	assert.Error(t, err)
	assert.Equal(t, 0, f.rooms.Len())
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	f := newFixture(t)
	f.connect("a")
	b := f.connect("b")
	f.handler.Join("a", JoinRoomRequest{RoomCode: "one"})
	f.handler.Join("a", JoinRoomRequest{RoomCode: "two"})
	f.handler.Join("b", JoinRoomRequest{RoomCode: "two"})
	b.take()

	f.disconnect("a")

	assert.Equal(t, 0, f.rooms.MemberCount("one"))
	assert.Equal(t, 1, f.rooms.MemberCount("two"))
	frames := b.take()
	require.Len(t, frames, 1)
	assert.Equal(t, 1, userCount(t, frames[0]))

	_, ok := f.participants.GetName("a")
	assert.False(t, ok)
}

func TestLobbyScenario(t *testing.T) {
	f := newFixture(t)
	a := f.connect("A")
	b := f.connect("B")

	f.handler.Join("A", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "alice"})
	frames := a.take()
	require.Len(t, frames, 2)
	assert.Equal(t, 1, userCount(t, frames[0]))
	assert.Equal(t, UserSystem, *chatMessage(t, frames[1]).User)

	f.handler.Join("B", JoinRoomRequest{RoomCode: "lobby", Password: "x", Username: "bob"})
	for _, r := range []*recorder{a, b} {
		frames := r.take()
		require.Len(t, frames, 2)
		assert.Equal(t, 2, userCount(t, frames[0]))
		assert.Equal(t, UserSystem, *chatMessage(t, frames[1]).User)
	}

	f.handler.SendMessage("B", SendMessageRequest{RoomCode: "lobby", Message: "hi"})
	toA := chatMessage(t, a.take()[0])
	assert.Equal(t, "bob", *toA.User)
	assert.Equal(t, "hi", toA.Text)
	toB := chatMessage(t, b.take()[0])
	assert.Equal(t, UserMe, *toB.User)
	assert.Equal(t, "hi", toB.Text)

	f.disconnect("A")
	frames = b.take()
	require.Len(t, frames, 1)
	assert.Equal(t, 1, userCount(t, frames[0]))

	f.disconnect("B")
	_, err := f.rooms.Get("lobby")
	assert.Error(t, err)
}
