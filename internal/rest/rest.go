package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Icerzack/chatroom/internal/pubsub"
	"github.com/Icerzack/chatroom/internal/relay"
	"github.com/Icerzack/chatroom/internal/rest/ws"
	"github.com/Icerzack/chatroom/internal/storage/participant"
	inmemParticipant "github.com/Icerzack/chatroom/internal/storage/participant/inmemory"
	"github.com/Icerzack/chatroom/internal/storage/room"
	inmemRoom "github.com/Icerzack/chatroom/internal/storage/room/inmemory"
)

const shutdownTimeout = 5 * time.Second

type Rest struct {
	config *Config

	mu         sync.Mutex
	server     *http.Server
	hub        *pubsub.Hub
	dispatcher *relay.Dispatcher
	cancel     context.CancelFunc
}

func NewRest(config *Config) *Rest {
	return &Rest{
		config: config,
	}
}

// Handler builds the router together with fresh registries, hub and
// dispatcher. The dispatcher loop runs until ctx is cancelled.
func (rest *Rest) Handler(ctx context.Context) http.Handler {
	roomsStorage, participantsStorage := rest.defineStorage()

	hub := pubsub.NewHub(rest.config.Logger)
	handler := relay.NewHandler(roomsStorage, participantsStorage, hub, rest.config.Logger)
	dispatcher := relay.NewDispatcher(handler, rest.config.QueueSize, rest.config.Logger)
	go dispatcher.Run(ctx)

	rest.mu.Lock()
	rest.hub = hub
	rest.dispatcher = dispatcher
	rest.mu.Unlock()

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{rest.allowedOrigin()},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}))

	// Define the /ping endpoint
	router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("pong"))
		if err != nil {
			return
		}
	})

	// Define the /ws endpoint
	wsServer := ws.NewWebSocketHandler(
		hub,
		dispatcher,
		rest.allowedOrigin(),
		rest.config.MaxMessageSize,
		rest.config.SendBuffer,
		rest.config.Logger,
	)
	router.HandleFunc("/ws", wsServer.Handle)

	return router
}

func (rest *Rest) Start() {
	ctx, cancel := context.WithCancel(context.Background())

	rest.mu.Lock()
	rest.cancel = cancel
	rest.server = &http.Server{
		Addr:              ":" + strconv.Itoa(rest.config.Port),
		Handler:           rest.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := rest.server
	rest.mu.Unlock()

	rest.config.Logger.Info("Server running", zap.Int("port", rest.config.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		rest.config.Logger.Error("server error", zap.Error(err))
		return
	}
}

func (rest *Rest) Stop() error {
	rest.mu.Lock()
	server, hub, dispatcher, cancel := rest.server, rest.hub, rest.dispatcher, rest.cancel
	rest.mu.Unlock()

	var err error
	if server != nil {
		ctx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		err = multierr.Append(err, server.Shutdown(ctx))
	}
	if hub != nil {
		err = multierr.Append(err, hub.Close())
	}
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if err != nil {
		rest.config.Logger.Error("server error", zap.Error(err))
	}
	return err
}

func (rest *Rest) allowedOrigin() string {
	if rest.config.AllowedOrigin == "" {
		return "*"
	}
	return rest.config.AllowedOrigin
}

func (rest *Rest) defineStorage() (room.Storage, participant.Storage) {
	var roomsStorage room.Storage
	var participantsStorage participant.Storage

	switch rest.config.RoomsStorageType {
	case room.InMemoryStorageType:
		rest.config.Logger.Info("Using in-memory storage for rooms")
		roomsStorage = inmemRoom.NewStorage(rest.config.Logger)
	default:
		rest.config.Logger.Info("Using in-memory storage for rooms")
		roomsStorage = inmemRoom.NewStorage(rest.config.Logger)
	}
	switch rest.config.ParticipantsStorageType {
	case participant.InMemoryStorageType:
		rest.config.Logger.Info("Using in-memory storage for participants")
		participantsStorage = inmemParticipant.NewStorage(rest.config.Logger)
	default:
		rest.config.Logger.Info("Using in-memory storage for participants")
		participantsStorage = inmemParticipant.NewStorage(rest.config.Logger)
	}

	return roomsStorage, participantsStorage
}
