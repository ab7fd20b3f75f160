package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/chetanK28/planning-poker/internal/config"
	"github.com/chetanK28/planning-poker/internal/server"
)

type PokerApp struct {
	log             *log.Logger
	mux             *http.Server
	ps              *server.PokerServer
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewPokerApp(mux *http.ServeMux, logger *log.Logger, ps *server.PokerServer, cfg *config.Config) *PokerApp {
	s := &PokerApp{
		log:             logger,
		ps:              ps,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/identity", s.createIdentity)
	mux.HandleFunc("GET /api/identity", s.identityMiddleware(s.getIdentity))
	mux.HandleFunc("DELETE /api/identity", s.deleteIdentity)
	mux.Handle("POST /api/rooms", s.identityMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/deck", s.getDeck)
	mux.Handle("GET /ws", s.identityMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
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

func (s *PokerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PokerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
