package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"notes-assistant/pkg/assistant"
	"notes-assistant/pkg/config"
	"notes-assistant/pkg/db"
	"notes-assistant/pkg/handlers"
	"notes-assistant/pkg/room"

	"github.com/gorilla/mux"
)

// Server represents the application server
type Server struct {
	router      *mux.Router
	roomManager *room.RoomManager
	handlers    *handlers.Handlers
	docStore    db.IDocumentStore
	config      *config.Config
}

// OpenStore connects to the document store selected by cfg.DatabaseDriver
func OpenStore(ctx context.Context, cfg *config.Config) (db.IDocumentStore, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		store, err := db.NewPostgresDocumentStore(ctx, cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite:
		store, err := db.NewSQLiteDocumentStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	docStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.DatabaseDriver, err)
	}
	return newServer(cfg, docStore), nil
}

func newServer(cfg *config.Config, docStore db.IDocumentStore) *Server {
	roomManager := room.NewRoomManager(docStore)
	h := handlers.NewHandlers(docStore, roomManager, assistant.NewService(docStore, roomManager))

	r := mux.NewRouter()
	h.Register(r)

	return &Server{
		router:      r,
		roomManager: roomManager,
		handlers:    h,
		docStore:    docStore,
		config:      cfg,
	}
}

// Handler returns the root handler with CORS applied
func (s *Server) Handler() http.Handler {
	// preflight must be answered before mux matches methods, which would 405
	return corsMiddleware(s.router)
}

// Start starts the server
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.GetServerAddr()
	}
	log.Printf("Starting notes assistant server on %s (%s store)", addr, s.config.DatabaseDriver)
	return http.ListenAndServe(addr, s.Handler())
}

// corsMiddleware handles CORS headers and responds to preflight requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close stops the rooms and closes the store
func (s *Server) Close() error {
	s.roomManager.Shutdown()
	return s.docStore.Close()
}
