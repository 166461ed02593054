package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/metrics"
	"github.com/hazz-dev/cratecheck/internal/storage"
)

// ServerStore defines the storage operations the server needs.
type ServerStore interface {
	InsertCheck(ctx context.Context, r checker.Result) error
	AllLatest(ctx context.Context) ([]storage.Check, error)
	NameHistory(ctx context.Context, name string, limit, offset int) ([]storage.Check, int, error)
}

// Checker performs live lookups.
type Checker interface {
	CheckWithTimeout(ctx context.Context, name string, timeout time.Duration) (checker.Result, error)
}

// Server holds the chi router and its dependencies.
type Server struct {
	store    ServerStore
	checker  Checker
	names    []string
	recorder *metrics.Recorder
	router   chi.Router
	logger   *slog.Logger
}

// New creates a new Server and registers all routes. names is the watch list
// reported by /api/names. recorder may be nil to disable /metrics.
func New(store ServerStore, c Checker, names []string, recorder *metrics.Recorder, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    store,
		checker:  c,
		names:    names,
		recorder: recorder,
		router:   chi.NewRouter(),
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/names", s.handleListNames)
	r.Get("/api/names/{name}", s.handleLookup)
	r.Get("/api/names/{name}/history", s.handleHistory)
	if s.recorder != nil {
		r.Handle("/metrics", s.recorder.Handler())
	}
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type nameDetail struct {
	Name         string               `json:"name"`
	Availability checker.Availability `json:"availability"`
	StatusCode   int                  `json:"status_code"`
	ResponseMs   int64                `json:"response_ms"`
	Error        string               `json:"error"`
	LastChecked  *time.Time           `json:"last_checked"`
}

func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	latestChecks, err := s.store.AllLatest(r.Context())
	if err != nil {
		s.logger.Error("AllLatest", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	byName := make(map[string]storage.Check, len(latestChecks))
	for _, c := range latestChecks {
		byName[c.Name] = c
	}

	details := make([]nameDetail, 0, len(s.names))
	for _, name := range s.names {
		d := nameDetail{Name: name, Availability: checker.Unknown}
		if c, ok := byName[name]; ok {
			d.Availability = c.Availability
			d.StatusCode = c.StatusCode
			d.ResponseMs = c.ResponseMs
			d.Error = c.Error
			t := c.CheckedAt
			d.LastChecked = &t
		}
		details = append(details, d)
	}

	writeJSON(w, http.StatusOK, details)
}

// nameParam returns the decoded {name} route parameter. chi matches against
// RawPath when it is set, so "foo%2Fbar" arrives still encoded; otherwise the
// parameter comes from the already decoded Path and must not be unescaped again.
func nameParam(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name, nil
	}
	return url.PathUnescape(name)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}

	var timeout time.Duration
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid timeout parameter")
			return
		}
		timeout = d
	}

	result, err := s.checker.CheckWithTimeout(r.Context(), name, timeout)
	if errors.Is(err, checker.ErrEmptyName) || errors.Is(err, checker.ErrNegativeTimeout) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("CheckWithTimeout", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if s.recorder != nil {
		s.recorder.Observe(result)
	}
	if err := s.store.InsertCheck(r.Context(), result); err != nil {
		s.logger.Error("InsertCheck", "name", name, "error", err)
	}

	checkedAt := result.CheckedAt
	writeJSON(w, http.StatusOK, nameDetail{
		Name:         result.Name,
		Availability: result.Availability,
		StatusCode:   result.StatusCode,
		ResponseMs:   result.ResponseTime.Milliseconds(),
		Error:        result.Error,
		LastChecked:  &checkedAt,
	})
}

type historyResponse struct {
	Checks []storage.Check `json:"checks"`
	Total  int             `json:"total"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name, err := nameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid name")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	checks, total, err := s.store.NameHistory(r.Context(), name, limit, offset)
	if err != nil {
		s.logger.Error("NameHistory", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if checks == nil {
		checks = []storage.Check{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Checks: checks,
		Total:  total,
	})
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
