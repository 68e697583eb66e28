package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrUnknownEvent   = errors.New("unknown event")
	ErrHandlerPanic   = errors.New("handler panicked")
)

// Event is a single unit of work for the dispatcher.
type Event struct {
	ConnID string
	Name   string
	Data   json.RawMessage
}

// IsClientEvent reports whether name may be sent by a client. Connect and
// disconnect are raised by the transport only.
func IsClientEvent(name string) bool {
	return name == EventJoinRoom || name == EventSendMessage
}

// Dispatcher serialises events onto a single goroutine so every handler
// runs to completion before the next one starts.
type Dispatcher struct {
	handler *Handler
	events  chan Event

	done     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

func NewDispatcher(handler *Handler, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		handler: handler,
		events:  make(chan Event, queueSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run processes events until ctx is cancelled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case ev := <-d.events:
			if err := d.Handle(ev); err != nil {
				d.logger.Debug("Event not handled",
					zap.String("connID", ev.ConnID),
					zap.String("event", ev.Name),
					zap.Error(err),
				)
			}
		}
	}
}

// Dispatch queues an event. It returns false if the dispatcher stopped or
// ctx ended first.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) bool {
	select {
	case <-d.done:
		return false
	default:
	}
	select {
	case d.events <- ev:
		return true
	case <-d.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
	})
}

// Handle runs one event synchronously. A panic inside the handler is
// recovered and reported as ErrHandlerPanic.
func (d *Dispatcher) Handle(ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered from panic in event handler",
				zap.String("connID", ev.ConnID),
				zap.String("event", ev.Name),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("%s: %w", ev.Name, ErrHandlerPanic)
		}
	}()

	switch ev.Name {
	case EventConnect:
		d.handler.Connect(ev.ConnID)
	case EventDisconnect:
		d.handler.Disconnect(ev.ConnID)
	case EventJoinRoom:
		var req JoinRoomRequest
		if err := decode(ev.Data, &req); err != nil {
			return fmt.Errorf("error unmarshaling JoinRoomRequest: %w", err)
		}
		d.handler.Join(ev.ConnID, req)
	case EventSendMessage:
		var req SendMessageRequest
		if err := decode(ev.Data, &req); err != nil {
			return fmt.Errorf("error unmarshaling SendMessageRequest: %w", err)
		}
		d.handler.SendMessage(ev.ConnID, req)
	default:
		return fmt.Errorf("%q: %w", ev.Name, ErrUnknownEvent)
	}
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return ErrInvalidMessage
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}
