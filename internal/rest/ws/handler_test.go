package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Icerzack/chatroom/internal/relay"
)

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent("a", []byte(`{"event":"join_room","data":{"roomCode":"lobby"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", ev.ConnID)
	assert.Equal(t, relay.EventJoinRoom, ev.Name)
	assert.JSONEq(t, `{"roomCode":"lobby"}`, string(ev.Data))

	_, err = parseEvent("a", []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = parseEvent("a", []byte(`{"event":"disconnect"}`))
	assert.ErrorIs(t, err, relay.ErrUnknownEvent)

	_, err = parseEvent("a", []byte(`{"event":"dance"}`))
	assert.ErrorIs(t, err, relay.ErrUnknownEvent)
}

func TestOriginChecker(t *testing.T) {
	ws := &WebSocketHandler{logger: zaptest.NewLogger(t)}

	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{"wildcard", "*", "https://evil.example", true},
		{"unset", "", "https://evil.example", true},
		{"no origin header", "https://chat.example", "", true},
		{"match", "https://chat.example", "https://chat.example", true},
		{"case insensitive", "https://chat.example", "HTTPS://Chat.Example", true},
		{"trailing path ignored", "https://chat.example/", "https://chat.example", true},
		{"mismatch", "https://chat.example", "https://evil.example", false},
		{"garbage", "https://chat.example", "::", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, ws.originChecker(tt.allowed)(r))
		})
	}
}

func TestClientSendAfterClose(t *testing.T) {
	c := newClient("a", nil, 1, zaptest.NewLogger(t))

	assert.True(t, c.Send([]byte("one")))
	assert.False(t, c.Send([]byte("two")), "queue is full")

	c.Close()
	c.Close()
	assert.False(t, c.Send([]byte("three")))
}
