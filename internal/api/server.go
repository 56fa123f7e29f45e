// Package api serves attempt history, rankings, and the per-scenario game
// registry over HTTP, for dashboards and scripts that want to watch runs
// without touching the database file.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/berghain-runner-go/internal/registry"
	"github.com/MJE43/berghain-runner-go/internal/store"
)

// Server handles HTTP requests against the attempt store. It is meant to
// bind to loopback; there is no auth layer.
type Server struct {
	store        *store.Store
	scenarioRoot string
	logger       *log.Logger
	addr         string
	httpServer   *http.Server
}

// New creates an API server bound to addr (host:port). An empty addr
// falls back to 127.0.0.1:8077. scenarioRoot is the directory holding
// scenario_<N> folders, used by the registry endpoint.
func New(st *store.Store, scenarioRoot, addr string) *Server {
	if addr == "" {
		addr = "127.0.0.1:8077"
	}
	return &Server{
		store:        st,
		scenarioRoot: scenarioRoot,
		logger:       log.New(os.Stdout, "[api] ", log.LstdFlags),
		addr:         addr,
	}
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Heartbeat("/health"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/attempts", s.handleRecentAttempts)
		r.Get("/attempts/{attemptID}/decisions", s.handleDecisions)
		r.Get("/games/{gameID}/attempts", s.handleGameAttempts)
		r.Get("/registry", s.handleRegistry)
	})

	return r
}

// Start begins listening in a goroutine. It returns once the socket is bound.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.addr, err)
	}
	s.logger.Printf("listening on http://%s", ln.Addr())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("serve: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// attemptDetail pairs a stored attempt with its per-constraint outcome.
type attemptDetail struct {
	store.Attempt
	Standings []store.ConstraintStanding `json:"standings"`
}

// GET /api/v1/leaderboard?scenario=&limit=
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	scenario := qInt(r, "scenario", 0)
	limit := clampInt(qInt(r, "limit", 20), 1, 500)

	rows, err := s.store.Leaderboard(r.Context(), scenario, limit)
	if err != nil {
		s.logger.Printf("leaderboard query: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query leaderboard")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

// GET /api/v1/attempts?limit=
func (s *Server) handleRecentAttempts(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(qInt(r, "limit", 20), 1, 500)

	rows, err := s.store.RecentAttempts(r.Context(), limit)
	if err != nil {
		s.logger.Printf("recent attempts query: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query attempts")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

// GET /api/v1/games/{gameID}/attempts
func (s *Server) handleGameAttempts(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	attempts, err := s.store.ListAttempts(r.Context(), gameID)
	if err != nil {
		s.logger.Printf("list attempts for %s: %v", gameID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to list attempts")
		return
	}
	if len(attempts) == 0 {
		s.writeError(w, http.StatusNotFound, "no attempts recorded for game")
		return
	}

	out := make([]attemptDetail, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptDetail{Attempt: a, Standings: a.Standings()})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"gameId": gameID, "attempts": out})
}

// GET /api/v1/attempts/{attemptID}/decisions
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	attemptID, err := strconv.ParseInt(chi.URLParam(r, "attemptID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid attempt id")
		return
	}

	decisions, err := s.store.Decisions(r.Context(), attemptID)
	if err != nil {
		s.logger.Printf("list decisions for %d: %v", attemptID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"attemptId": attemptID,
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// registryGame is one registry entry in document order.
type registryGame struct {
	GameID    string          `json:"gameId"`
	CreatedAt *time.Time      `json:"createdAt,omitempty"`
	Info      json.RawMessage `json:"info"`
}

// GET /api/v1/registry?scenario=
func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	scenario := qInt(r, "scenario", 0)
	if scenario < 1 {
		s.writeError(w, http.StatusBadRequest, "scenario query parameter is required")
		return
	}

	path := filepath.Join(s.scenarioRoot, fmt.Sprintf("scenario_%d", scenario), registry.FileName)
	entries, err := registry.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "no games recorded for scenario")
			return
		}
		s.logger.Printf("read registry for scenario %d: %v", scenario, err)
		s.writeError(w, http.StatusInternalServerError, "failed to read registry")
		return
	}

	games := make([]registryGame, 0, len(entries))
	for _, e := range entries {
		g := registryGame{GameID: e.GameID, Info: e.Raw}
		if !e.CreatedAt.IsZero() {
			created := e.CreatedAt
			g.CreatedAt = &created
		}
		games = append(games, g)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scenario": scenario,
		"games":    games,
		"count":    len(games),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func qInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
