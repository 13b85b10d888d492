package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/MJE43/arcade-session-go/internal/games"
	"github.com/MJE43/arcade-session-go/internal/session"
)

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins feeds both CORS and the websocket origin check.
	AllowedOrigins []string
	// RequestTimeout bounds every request except the events stream.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

const defaultRequestTimeout = 30 * time.Second

// Server handles HTTP requests
type Server struct {
	arcade       *session.Arcade
	hub          *Hub
	errorHandler *ErrorHandler
	logger       *zap.Logger
	origins      []string
	timeout      time.Duration
	startTime    time.Time
}

// NewServer creates an API server over arcade. hub should be the sink (or
// part of the sink) the arcade was built with.
func NewServer(arcade *session.Arcade, hub *Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	if hub == nil {
		hub = NewHub(logger)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"localhost:*", "127.0.0.1:*", "wails.localhost"}
	}

	s := &Server{
		arcade:       arcade,
		hub:          hub,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		origins:      origins,
		timeout:      timeout,
		startTime:    time.Now(),
	}
	logger.Info("server created",
		zap.Int("games_available", len(games.ListGames())),
		zap.Strings("origins", origins),
		zap.String("engine_version", EngineVersion),
	)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(s.origins),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Engine-Version", "X-Error-Type"},
		AllowCredentials: false,
		MaxAge:           60 * 15,
	}))

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/events", s.hub.ServeWS(s.origins))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/version", s.handleVersion)
			r.Get("/games", s.handleListGames)
			r.Get("/balance", s.handleBalance)
			r.Get("/history", s.handleHistory)

			r.Route("/games/{kind}", func(r chi.Router) {
				r.Post("/session", s.handleOpenSession)
				r.Get("/session", s.handleGetSession)
				r.Delete("/session", s.handleCloseSession)
				r.Post("/rounds", s.handleStartRound)
				r.Post("/pick", s.handlePick)
				r.Post("/reveal", s.handleReveal)
				r.Post("/cashout", s.handleCashOut)
				r.Post("/ack", s.handleAcknowledge)
			})
		})
	})

	return r
}

// corsOrigins turns websocket host patterns into CORS origins.
func corsOrigins(patterns []string) []string {
	out := make([]string, 0, len(patterns)*2)
	for _, p := range patterns {
		if p == "*" {
			return []string{"*"}
		}
		out = append(out, "http://"+p, "https://"+p)
	}
	return out
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
