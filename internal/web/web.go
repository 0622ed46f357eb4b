package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"timegate/internal/config"
	"timegate/internal/gate"
	appLog "timegate/internal/log"
	"timegate/internal/schedule"
)

const shutdownTimeout = 5 * time.Second

// Gate is the read side of the live gate.
type Gate interface {
	Snapshot() gate.Snapshot
	Location() *time.Location
}

// Server exposes the gate over HTTP.
type Server struct {
	cfg  *config.Config
	gate Gate
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, g Gate) *Server {
	s := &Server{
		cfg:  cfg,
		gate: g,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled")
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="timegate", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/contains", s.handleContains)
	s.mux.HandleFunc("GET /api/periods", s.handlePeriods)
	s.mux.HandleFunc("GET /api/windows", s.handleWindows)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type entryDTO struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Period      string `json:"period"`
}

type containsResponse struct {
	At       time.Time  `json:"at"`
	Contains bool       `json:"contains"`
	Active   []entryDTO `json:"active"`
}

type periodsResponse struct {
	Timezone string     `json:"timezone"`
	LoadedAt time.Time  `json:"loaded_at"`
	Periods  []entryDTO `json:"periods"`
}

type windowDTO struct {
	SourceID    string    `json:"source_id"`
	UID         string    `json:"uid"`
	InstanceKey string    `json:"instance_key"`
	Summary     string    `json:"summary"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

type windowsResponse struct {
	Windows []windowDTO `json:"windows"`
}

// handleContains answers whether an instant is inside the schedule.
//
// GET /api/contains?at=2025-04-30T10:00:00+02:00
//   - at: RFC 3339 instant, defaults to now in the configured timezone.
func (s *Server) handleContains(w http.ResponseWriter, r *http.Request) {
	loc := s.gate.Location()
	at := time.Now().In(loc)
	if raw := r.URL.Query().Get("at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid at: expected RFC 3339")
			return
		}
		at = t
	}

	sched := s.gate.Snapshot().Schedule
	active := sched.Active(at)

	appLog.Debug("api contains request", "at", at.Format(time.RFC3339), "active", len(active))

	writeJSON(w, http.StatusOK, containsResponse{
		At:       at,
		Contains: len(active) > 0,
		Active:   toEntryDTOs(active),
	})
}

func (s *Server) handlePeriods(w http.ResponseWriter, _ *http.Request) {
	snap := s.gate.Snapshot()
	writeJSON(w, http.StatusOK, periodsResponse{
		Timezone: s.gate.Location().String(),
		LoadedAt: snap.LoadedAt,
		Periods:  toEntryDTOs(snap.Schedule.Entries()),
	})
}

func (s *Server) handleWindows(w http.ResponseWriter, _ *http.Request) {
	snap := s.gate.Snapshot()
	dtos := make([]windowDTO, 0, len(snap.Windows))
	for _, win := range snap.Windows {
		dtos = append(dtos, windowDTO{
			SourceID:    win.SourceID,
			UID:         win.UID,
			InstanceKey: win.InstanceKey,
			Summary:     win.Summary,
			AllDay:      win.AllDay,
			Start:       win.Start,
			End:         win.End,
		})
	}
	writeJSON(w, http.StatusOK, windowsResponse{Windows: dtos})
}

func toEntryDTOs(entries []schedule.Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO{
			Name:        e.Name,
			Description: e.Description,
			Period:      e.Period.String(),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
