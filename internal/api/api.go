// Package api serves the local control surface over HTTP: start, inspect,
// pause, resume, and cancel jobs, and fetch an SVG preview of what is (or
// would be) plotted. It speaks JSON and is meant for localhost use by
// frontends and scripts; there is no authentication.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/penplot/pkg/config"
	"github.com/matzehuels/penplot/pkg/device"
	"github.com/matzehuels/penplot/pkg/errors"
	"github.com/matzehuels/penplot/pkg/job"
	"github.com/matzehuels/penplot/pkg/method"
	"github.com/matzehuels/penplot/pkg/method/builtin"
	"github.com/matzehuels/penplot/pkg/preview"
)

// Server exposes a job controller over HTTP.
type Server struct {
	ctrl *job.Controller
	cfg  config.Config
	log  *log.Logger
}

// New builds a server around ctrl. The profile supplies compile defaults
// for jobs started over the API.
func New(ctrl *job.Controller, cfg config.Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{ctrl: ctrl, cfg: cfg, log: logger}
}

// Router assembles the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/methods", s.listMethods)

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.startJob)
		r.Get("/active", s.activeJob)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getJob)
			r.Get("/preview.svg", s.previewJob)
			r.Post("/pause", s.pauseJob)
			r.Post("/resume", s.resumeJob)
			r.Post("/cancel", s.cancelJob)
		})
	})

	return r
}

// logRequests logs one line per request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http", "method", r.Method, "path", r.URL.Path, "status", ww.Status())
	})
}

// =============================================================================
// Wire Types
// =============================================================================

// startRequest is the POST /jobs body. Placement fields default to the
// identity; compile options come from the machine profile.
type startRequest struct {
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	Scale   float64        `json:"scale,omitempty"`
	OffsetX float64        `json:"offset_x,omitempty"`
	OffsetY float64        `json:"offset_y,omitempty"`
	Rotate  float64        `json:"rotate,omitempty"`
}

type jobResponse struct {
	ID         string       `json:"id"`
	Method     string       `json:"method"`
	Status     job.Status   `json:"status"`
	Progress   job.Progress `json:"progress"`
	Pen        penResponse  `json:"pen"`
	Connection string       `json:"connection"`
	Error      string       `json:"error,omitempty"`
}

type penResponse struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Down bool    `json:"down"`
}

type methodResponse struct {
	Name string `json:"name"`
	Info string `json:"info"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func jobJSON(j *job.Job) jobResponse {
	pen := j.Pen()
	resp := jobResponse{
		ID:         j.ID,
		Method:     j.Method,
		Status:     j.Status(),
		Progress:   j.Progress(),
		Pen:        penResponse{X: pen.X, Y: pen.Y, Down: pen.PenDown},
		Connection: string(j.Connection()),
	}
	if err := j.Err(); err != nil {
		resp.Error = errors.UserMessage(err)
	}
	return resp
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listMethods(w http.ResponseWriter, r *http.Request) {
	out := make([]methodResponse, 0, len(builtin.All))
	for _, m := range builtin.All {
		out = append(out, methodResponse{Name: m.Name(), Info: m.Info()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "malformed request body: %v", err))
		return
	}
	if req.Method == "" {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "method is required"))
		return
	}

	t := device.IdentityTransform()
	if req.Scale != 0 {
		t.ScaleX = req.Scale
		t.ScaleY = req.Scale
	}
	t.OffsetX = req.OffsetX
	t.OffsetY = req.OffsetY
	t.Rotation = req.Rotate

	j, err := s.ctrl.Start(r.Context(), job.Request{
		Method:    req.Method,
		Params:    method.Params(req.Params),
		Transform: t,
		Compile:   s.cfg.CompileOptions(),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, jobJSON(j))
}

func (s *Server) activeJob(w http.ResponseWriter, r *http.Request) {
	j := s.ctrl.Active()
	if j == nil {
		writeError(w, errors.New(errors.ErrCodeInvalidInput, "no active job"))
		return
	}
	writeJSON(w, http.StatusOK, jobJSON(j))
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.ctrl.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown job"})
		return
	}
	writeJSON(w, http.StatusOK, jobJSON(j))
}

// previewJob renders the job's compiled stream as SVG. ?travel=1 includes
// pen-up travel as dashed lines.
func (s *Server) previewJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.ctrl.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown job"})
		return
	}
	opts := []preview.SVGOption{}
	if r.URL.Query().Get("travel") == "1" {
		opts = append(opts, preview.WithTravel())
	}
	svg := preview.RenderSVG(j.Commands(), s.cfg.CompileOptions().Area, opts...)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.ctrl.Pause)
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.ctrl.Resume)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	s.jobAction(w, r, s.ctrl.Cancel)
}

func (s *Server) jobAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	id := chi.URLParam(r, "id")
	if _, ok := s.ctrl.Get(id); !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: "unknown job"})
		return
	}
	if err := action(id); err != nil {
		writeError(w, err)
		return
	}
	j, _ := s.ctrl.Get(id)
	writeJSON(w, http.StatusOK, jobJSON(j))
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps driver error codes onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidMethod,
		errors.ErrCodeMalformedPath, errors.ErrCodeDrawingMethod,
		errors.ErrCodeOutOfBounds, errors.ErrCodeInvalidConfig:
		status = http.StatusBadRequest
	case errors.ErrCodeJobInProgress:
		status = http.StatusConflict
	case errors.ErrCodeMachineInUse:
		status = http.StatusServiceUnavailable
	case errors.ErrCodeTransport, errors.ErrCodeAckTimeout,
		errors.ErrCodeHandshake, errors.ErrCodeFrameCorrupt:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorResponse{Code: string(code), Message: errors.UserMessage(err)})
}
