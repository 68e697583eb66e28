// Package pubsub fans named events out to connections subscribed to
// channels. It is the transport the relay handler talks to.
package pubsub

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Envelope is the frame written to every connection.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Sink receives encoded frames for a single connection. Send must not
// block; it returns false when the frame could not be queued.
type Sink interface {
	Send(frame []byte) bool
	Close()
}

type Hub struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	channels map[string]map[string]struct{}
	closed   bool

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sinks:    make(map[string]Sink),
		channels: make(map[string]map[string]struct{}),
		logger:   logger,
	}
}

// Register attaches a sink under connID. A sink already registered under
// the same id is closed and replaced.
func (h *Hub) Register(connID string, sink Sink) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	old := h.sinks[connID]
	h.sinks[connID] = sink
	count := len(h.sinks)
	h.mu.Unlock()

	if old != nil {
		old.Close()
	}
	h.logger.Debug("connection registered", zap.String("connID", connID), zap.Int("count", count))
	return true
}

// Unregister detaches the connection from every channel and closes its sink.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	sink, ok := h.sinks[connID]
	if ok {
		h.detachLocked(connID)
	}
	count := len(h.sinks)
	h.mu.Unlock()

	if ok {
		sink.Close()
		h.logger.Debug("connection unregistered", zap.String("connID", connID), zap.Int("count", count))
	}
}

func (h *Hub) detachLocked(connID string) {
	delete(h.sinks, connID)
	for name, subs := range h.channels {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(h.channels, name)
		}
	}
}

func (h *Hub) Subscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sinks[connID]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[string]struct{})
		h.channels[channel] = subs
	}
	subs[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(subs, connID)
	if len(subs) == 0 {
		delete(h.channels, channel)
	}
}

func (h *Hub) IsSubscribed(connID, channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.channels[channel][connID]
	return ok
}

// Subscribers returns the sorted connection ids subscribed to channel.
func (h *Hub) Subscribers(channel string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.channels[channel]))
	for id := range h.channels[channel] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sinks)
}

// Emit sends an event to a single connection.
func (h *Hub) Emit(connID, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}
	h.mu.RLock()
	sink, found := h.sinks[connID]
	h.mu.RUnlock()
	if !found {
		return
	}
	if !sink.Send(frame) {
		h.drop([]string{connID})
	}
}

// Broadcast sends an event to every subscriber of channel.
func (h *Hub) Broadcast(channel, event string, data any) {
	h.BroadcastExcept(channel, "", event, data)
}

// BroadcastExcept sends an event to every subscriber of channel other
// than exceptID.
func (h *Hub) BroadcastExcept(channel, exceptID, event string, data any) {
	frame, ok := h.encode(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	var failed []string
	for id := range h.channels[channel] {
		if id == exceptID {
			continue
		}
		if sink, found := h.sinks[id]; found && !sink.Send(frame) {
			failed = append(failed, id)
		}
	}
	h.mu.RUnlock()

	h.drop(failed)
}

// drop removes connections whose send queue overflowed.
func (h *Hub) drop(ids []string) {
	for _, id := range ids {
		h.logger.Warn("dropping connection with full send queue", zap.String("connID", id))
		h.Unregister(id)
	}
}

func (h *Hub) encode(event string, data any) ([]byte, bool) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return frame, true
}

// Close unregisters every connection and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	sinks := h.sinks
	h.sinks = make(map[string]Sink)
	h.channels = make(map[string]map[string]struct{})
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
	h.logger.Info("hub closed", zap.Int("count", len(sinks)))
	return nil
}
