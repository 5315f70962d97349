package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"discharge-assistant/internal/core"
	"discharge-assistant/internal/directory"
	"discharge-assistant/pkg"
)

// Patients is the part of the patient directory the API exposes.
type Patients interface {
	Lookup(ctx context.Context, nameQuery string) (pkg.PatientRecord, error)
	ListAll(ctx context.Context) []pkg.PatientRecord
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Sessions     *core.Sessions
	Orchestrator *core.Orchestrator
	Patients     Patients
	Metrics      http.Handler
	Logger       *zap.Logger

	router chi.Router
}

// NewServer constructs a Server and its routes.  metricsHandler may be nil,
// in which case /metrics is not mounted.
func NewServer(sessions *core.Sessions, orch *core.Orchestrator, patients Patients, metricsHandler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		Sessions:     sessions,
		Orchestrator: orch,
		Patients:     patients,
		Metrics:      metricsHandler,
		Logger:       logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Post("/sessions/{sessionID}/messages", s.handlePostMessage)
		r.Get("/patients", s.handleListPatients)
		r.Get("/patients/{name}", s.handleGetPatient)
	})
	return r
}

// ServeHTTP dispatches to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type sessionResponse struct {
	SessionID  string     `json:"session_id"`
	Transcript []pkg.Turn `json:"transcript"`
}

type messageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	Reply            string   `json:"reply"`
	Citations        []string `json:"citations"`
	Fallback         bool     `json:"fallback"`
	TranscriptLength int      `json:"transcript_length"`
}

type patientResponse struct {
	Patient pkg.PatientRecord `json:"patient"`
	Report  string            `json:"report"`
}

// handleCreateSession starts a session seeded with the greeting.
func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.Sessions.Create()
	s.Logger.Info("session created", zap.String("session", sess.ID))
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: sess.ID, Transcript: sess.Transcript()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: sess.ID, Transcript: sess.Transcript()})
}

// handlePostMessage accepts either a JSON body or a form field named
// content and returns the assistant reply.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.Sessions.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	content, err := readContent(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(content) == "" {
		writeError(w, http.StatusBadRequest, "empty message")
		return
	}

	reply, err := s.Orchestrator.HandleTurn(r.Context(), sess, content)
	if err != nil {
		s.Logger.Error("handle turn", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not handle message")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Reply:            reply.Text,
		Citations:        reply.Citations,
		Fallback:         reply.Fallback,
		TranscriptLength: reply.TranscriptLength,
	})
}

func (s *Server) handleListPatients(w http.ResponseWriter, r *http.Request) {
	records := s.Patients.ListAll(r.Context())
	if records == nil {
		records = []pkg.PatientRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patients": records})
}

func (s *Server) handleGetPatient(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Patients.Lookup(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, directory.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, patientResponse{Patient: rec, Report: directory.FormatReport(rec)})
}

func readContent(w http.ResponseWriter, r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req messageRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			return "", err
		}
		return req.Content, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.FormValue("content"), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
