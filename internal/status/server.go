package status

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/senigami/factorywatch/internal/domain"
	"github.com/senigami/factorywatch/internal/telemetry"
	"github.com/senigami/factorywatch/internal/watcher"
)

// session is the slice of the watcher the status surface reads from.
type session interface {
	SessionID() string
	Live() bool
	Endpoint() string
	Paused() bool
	Views() []watcher.JobView
	View(key string) (watcher.JobView, bool)
	TestActivities() []domain.TestActivity
}

// Server exposes the watcher's state over local HTTP: job views with display
// estimates, connection health, and Prometheus metrics. It is read-only; all
// mutation flows in from the factory server.
type Server struct {
	logger  *log.Logger
	session session
	mux     *http.ServeMux
}

func NewServer(logger *log.Logger, sess session) *Server {
	s := &Server{
		logger:  logger,
		session: sess,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	s.mux.HandleFunc("GET /v1/jobs/{key}", s.handleGetJob)
	s.mux.HandleFunc("GET /v1/connection", s.handleConnection)
	s.mux.Handle("GET /metrics", telemetry.Handler())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      s.session.SessionID(),
		"paused":          s.session.Paused(),
		"jobs":            s.session.Views(),
		"test_activities": s.session.TestActivities(),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	view, ok := s.session.View(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleConnection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"live":     s.session.Live(),
		"endpoint": s.session.Endpoint(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
