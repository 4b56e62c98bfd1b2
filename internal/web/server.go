// Package web is the HTTP surface: the public availability/catalog API,
// the admin endpoints and optional static file serving for the SPA.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/example/restweek/internal/auth"
	"github.com/example/restweek/internal/catalog"
	"github.com/example/restweek/internal/gateway"
	"github.com/example/restweek/internal/platform"
	"github.com/example/restweek/internal/scrape"
)

type Server struct {
	Gateway *gateway.Gateway
	Catalog catalog.Store

	// Auth and Refresher are nil when no database is configured; the admin
	// surface is disabled then.
	Auth      *auth.Store
	Refresher *scrape.Refresher

	StaticDir string
	Log       zerolog.Logger
}

func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.accessLog, s.recoverPanic)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/filters", s.handleFilters).Methods(http.MethodGet)
	api.HandleFunc("/restaurants", s.handleRestaurants).Methods(http.MethodGet)
	api.HandleFunc("/availability", s.handleAvailability).Methods(http.MethodGet)

	if s.Auth != nil {
		admin := r.PathPrefix("/admin").Subrouter()
		admin.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
		admin.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
		admin.Handle("/refresh", s.Auth.RequireAuth(http.HandlerFunc(s.handleRefresh))).Methods(http.MethodPost)
	}

	if s.StaticDir != "" {
		r.PathPrefix("/").HandlerFunc(s.handleStatic)
	}
	return r
}

// slotJSON is the wire shape of one slot: local wall-clock time plus the
// platform's seating label.
type slotJSON struct {
	Time        string `json:"time"`
	SeatingType string `json:"seating_type"`
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	platformURL := strings.TrimSpace(q.Get("platform_url"))
	if platformURL == "" {
		// Catalog rows sometimes carry only an OpenTable restaurant id;
		// the restref URL leads to the same page-scrape resolve path.
		if rid := strings.TrimSpace(q.Get("opentable_id")); rid != "" {
			platformURL = fmt.Sprintf("https://www.opentable.com/restref/client/?rid=%s", rid)
		}
	}

	partySize := 2
	if v := q.Get("party_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: party_size %q", gateway.ErrInvalidInput, v))
			return
		}
		partySize = n
	}

	res, err := s.Gateway.CheckAvailability(r.Context(), gateway.Query{
		PlatformURL: platformURL,
		Date:        q.Get("date"),
		PartySize:   partySize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	slots := make([]slotJSON, 0, len(res.Slots))
	for _, sl := range res.Slots {
		slots = append(slots, slotJSON{Time: sl.Time.Format("15:04"), SeatingType: sl.SeatingType})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, catalog.FilterOptions(rs))
}

func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	rs, err := s.Catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	filtered := catalog.Filter(rs, catalog.Query{
		Neighborhood: strings.TrimSpace(q.Get("neighborhood")),
		Tag:          strings.TrimSpace(q.Get("tag")),
		MealTypes:    q["meal_type"],
		Search:       strings.TrimSpace(q.Get("search")),
	})
	s.writeJSON(w, http.StatusOK, filtered)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: bad login body", gateway.ErrInvalidInput))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	id, err := s.Auth.Authenticate(ctx, strings.TrimSpace(body.Username), body.Password)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid username or password", "code": "unauthorized"})
		return
	}
	if err := s.Auth.SetSession(w, r, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Refresher == nil {
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "catalog refresh is not configured", "code": "not_configured"})
		return
	}
	n, err := s.Refresher.Refresh(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "restaurants": n})
}

// handleStatic serves the SPA build, falling back to index.html so client
// side routes deep-link correctly.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean(strings.TrimPrefix(r.URL.Path, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		clean = "index.html"
	}
	full := filepath.Join(s.StaticDir, clean)
	if info, err := os.Stat(full); err != nil || info.IsDir() {
		full = filepath.Join(s.StaticDir, "index.html")
	}
	http.ServeFile(w, r, full)
}

// writeError maps the error taxonomy onto distinct statuses so callers can
// tell a retryable budget timeout from a hard failure.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorCategory(err)
	if status >= http.StatusInternalServerError {
		s.Log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func errorCategory(err error) (int, string) {
	switch {
	case errors.Is(err, gateway.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, platform.ErrUnsupportedPlatform):
		return http.StatusBadRequest, "unsupported_platform"
	case errors.Is(err, platform.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, platform.ErrUpstreamParse):
		return http.StatusBadGateway, "upstream_parse"
	case errors.Is(err, platform.ErrUpstreamRequest):
		return http.StatusBadGateway, "upstream_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.Error().Err(err).Msg("write response")
	}
}

type ctxKeyRequestID struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		id, _ := r.Context().Value(ctxKeyRequestID{}).(string)
		s.Log.Info().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

// recoverPanic turns a panicking handler into a 500 for that one request
// instead of taking the process down.
func (s *Server) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.Log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "code": "internal"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
