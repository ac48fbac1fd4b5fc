package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/pdfchat/internal/config"
	"github.com/dgallion1/pdfchat/internal/gateway"
	"github.com/dgallion1/pdfchat/internal/workspace"
	"github.com/dgallion1/pdfchat/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server is the HTTP API server for pdfchat.
type Server struct {
	router   chi.Router
	gateway  *gateway.Gateway
	sessions *workspace.Store
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(gw *gateway.Gateway, sessions *workspace.Store, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		gateway:  gw,
		sessions: sessions,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.AccessToken != "" {
			r.Use(AuthMiddleware(s.cfg.AccessToken, s.log))
		}

		r.Post("/api/chat", s.handleChat)
		r.Get("/api/stats/llm", s.handleLLMStats)

		r.Post("/api/sessions", s.handleCreateSession)
		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Use(s.sessionCtx)
			r.Get("/", s.handleGetSession)
			r.Put("/credential", s.handleSetCredential)
			r.Post("/document", s.handleUploadDocument)
			r.Get("/pages/{page}", s.handlePage)
			r.Post("/pointer-up", s.handlePointerUp)
			r.Post("/click", s.handleClick)
			r.Post("/keydown", s.handleKeyDown)
			r.Post("/popup/close", s.handleClosePopup)
			r.Post("/popup/{action}", s.handleInvoke)
			r.Post("/messages", s.handleSend)
			r.Get("/messages", s.handleMessages)
			r.Post("/resize", s.handleResize)
		})
	})

	r.Handle("/*", web.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
