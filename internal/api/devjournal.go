package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/kusum-bhattarai/dev-journal/internal/config"
	"github.com/kusum-bhattarai/dev-journal/internal/database"
	"github.com/kusum-bhattarai/dev-journal/internal/integrations/userapi"
	"github.com/kusum-bhattarai/dev-journal/internal/server"
)

type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	users          userapi.UserService
	signingKey     []byte
	internalAPIKey string
	allowedOrigins []string
}

// NewChatApp wires the HTTP surface. The mux is shared with the stats
// updater so /metrics rides the same listener.
func NewChatApp(logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, users userapi.UserService, cfg *config.Config, mux *http.ServeMux) *ChatApp {
	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		users:          users,
		signingKey:     cfg.SigningKey,
		internalAPIKey: cfg.InternalAPIKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.Handle("POST /api/conversations", s.authMiddleware(s.createConversation))
	mux.Handle("GET /api/conversations", s.authMiddleware(s.listConversations))
	mux.Handle("GET /api/messages/{conversationId}", s.authMiddleware(s.getMessages))
	mux.Handle("POST /internal/notifications/journal_share", s.internalAuthMiddleware(s.journalShareNotification))
	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
