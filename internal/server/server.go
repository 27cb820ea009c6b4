// Package server exposes the run API over HTTP: run submission and
// inspection, lifecycle commands, baseline approval and the live
// websocket channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/probelab/webpilot/internal/brain"
	"github.com/probelab/webpilot/internal/control"
	"github.com/probelab/webpilot/internal/page"
	"github.com/probelab/webpilot/internal/run"
	"github.com/probelab/webpilot/internal/types"
)

// PageFactory opens a fresh browser page for one run.
type PageFactory func(ctx context.Context, device types.DeviceProfile) (page.Page, error)

// Server routes the run API. One executor goroutine is spawned per
// submitted run.
type Server struct {
	mux      *http.ServeMux
	manager  *run.Manager
	executor *run.Executor
	newPage  PageFactory
	defaults types.RunOptions
	logf     func(format string, args ...any)
}

// New builds the server around a manager and its executor.
func New(m *run.Manager, e *run.Executor, newPage PageFactory, defaults types.RunOptions, logf func(string, ...any)) *Server {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	s := &Server{
		mux:      http.NewServeMux(),
		manager:  m,
		executor: e,
		newPage:  newPage,
		defaults: defaults,
		logf:     logf,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/runs", s.createRun)
	s.mux.HandleFunc("GET /api/runs", s.listRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	s.mux.HandleFunc("GET /api/runs/{id}/progress", s.getProgress)
	s.mux.HandleFunc("GET /api/runs/{id}/steps/{n}", s.getStep)
	s.mux.HandleFunc("POST /api/runs/{id}/pause", s.command((*run.Run).Pause))
	s.mux.HandleFunc("POST /api/runs/{id}/resume", s.command((*run.Run).Resume))
	s.mux.HandleFunc("POST /api/runs/{id}/cancel", s.command((*run.Run).Cancel))
	s.mux.HandleFunc("POST /api/runs/{id}/approve", s.command((*run.Run).Approve))
	s.mux.HandleFunc("POST /api/runs/{id}/actions", s.injectAction)
	s.mux.HandleFunc("POST /api/runs/{id}/baselines/{n}/approve", s.approveBaseline)
	s.mux.HandleFunc("GET /api/runs/{id}/ws", s.serveWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// createRunRequest is the submission payload; zero-valued option fields
// fall back to the server defaults.
type createRunRequest struct {
	URL      string            `json:"url"`
	Options  *types.RunOptions `json:"options,omitempty"`
	Scripted []brain.Action    `json:"scriptedActions,omitempty"`
}

func (s *Server) createRun(w http.ResponseWriter, req *http.Request) {
	var body createRunRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	opts := s.defaults
	if body.Options != nil {
		opts = *body.Options
	}
	r := s.manager.Create(body.URL, opts)

	go func() {
		ctx := context.Background()
		p, err := s.newPage(ctx, opts.Device)
		if err != nil {
			s.logf("run %s: open page: %v", r.ID(), err)
			r.Cancel()
			return
		}
		defer p.Close()
		exec := *s.executor
		if len(body.Scripted) > 0 {
			exec.Brain = brain.NewScripted(body.Scripted...)
		}
		if err := exec.Execute(ctx, r, p); err != nil {
			s.logf("run %s: %v", r.ID(), err)
		}
	}()

	writeJSON(w, http.StatusAccepted, r.Snapshot())
}

func (s *Server) listRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) getRun(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, r.Snapshot())
}

func (s *Server) getProgress(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	prog := r.Progress()
	if prog == nil {
		writeError(w, http.StatusNotFound, errors.New("diagnosis has not started"))
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (s *Server) getStep(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	n, err := strconv.Atoi(req.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, errors.New("step number must be a positive integer"))
		return
	}
	step, ok := r.GetStep(n)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no step %d", n))
		return
	}
	writeJSON(w, http.StatusOK, step)
}

// command adapts a run lifecycle method into a handler.
func (s *Server) command(fn func(*run.Run) error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r, ok := s.lookup(w, req)
		if !ok {
			return
		}
		if err := fn(r); err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeJSON(w, http.StatusOK, r.Snapshot())
	}
}

func (s *Server) injectAction(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	var action brain.Action
	if err := json.NewDecoder(req.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode action: %w", err))
		return
	}
	if err := r.InjectAction(action); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) approveBaseline(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	n, err := strconv.Atoi(req.PathValue("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, errors.New("step number must be a positive integer"))
		return
	}
	if err := s.manager.ApproveBaseline(r.ID(), n); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func (s *Server) serveWS(w http.ResponseWriter, req *http.Request) {
	r, ok := s.lookup(w, req)
	if !ok {
		return
	}
	if err := control.ServeWS(w, req, r, s.logf); err != nil {
		s.logf("websocket for run %s: %v", r.ID(), err)
	}
}

func (s *Server) lookup(w http.ResponseWriter, req *http.Request) (*run.Run, bool) {
	id := req.PathValue("id")
	r, ok := s.manager.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown run %q", id))
		return nil, false
	}
	return r, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
