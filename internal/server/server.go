// Package server exposes dialogs over HTTP.
//
// Routes:
//
//	POST /dialogs/{dialog}/trigger  run one pass, respond with its updates
//	POST /dialogs/{dialog}/patch    run one pass and apply it to a form document
//	GET  /dialogs/{dialog}/graph    mermaid rendering of the graph or a plan
//	GET  /dialogs/{dialog}/passes   recent pass traces, filtered by status and trigger_kind
//	                                (needs a trace store)
//	GET  /dialogs                   dialog names
//	GET  /healthz                   liveness
//	GET  /metrics                   Prometheus metrics
//
// Unexpected evaluation failures answer 500 with a generic message. The
// failing provider is logged server-side only.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/rdialog/internal/engine"
	"github.com/roach88/rdialog/internal/graph"
	"github.com/roach88/rdialog/internal/ir"
	"github.com/roach88/rdialog/internal/patch"
	"github.com/roach88/rdialog/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// genericFailure is the only detail clients see for fatal errors.
const genericFailure = "could not update dialog"

// json is the std-compatible sonic codec.
var json = sonic.ConfigStd

// PassLister reads recorded passes. Implemented by *store.Store.
type PassLister interface {
	QueryPasses(ctx context.Context, q store.Query) ([]store.PassRecord, error)
}

// Server routes HTTP requests to dialogs.
type Server struct {
	dialogs  map[string]*engine.Dialog
	names    []string
	passes   PassLister
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithPasses enables GET /dialogs/{dialog}/passes.
func WithPasses(p PassLister) Option {
	return func(s *Server) {
		s.passes = p
	}
}

// WithGatherer serves /metrics from g. Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server for the given dialogs. Dialog names must be unique.
func New(dialogs []*engine.Dialog, opts ...Option) (*Server, error) {
	s := &Server{
		dialogs:  make(map[string]*engine.Dialog, len(dialogs)),
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, d := range dialogs {
		if _, dup := s.dialogs[d.Name()]; dup {
			return nil, fmt.Errorf("duplicate dialog %q", d.Name())
		}
		s.dialogs[d.Name()] = d
		s.names = append(s.names, d.Name())
	}
	slices.Sort(s.names)

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/dialogs", s.listDialogs)
	r.Route("/dialogs/{dialog}", func(r chi.Router) {
		r.Post("/trigger", s.trigger)
		r.Post("/patch", s.patch)
		r.Get("/graph", s.graph)
		r.Get("/passes", s.listPasses)
	})
	return r
}

// PatchRequest is the body of POST /dialogs/{dialog}/patch.
type PatchRequest struct {
	Request ir.Request `json:"request"`

	// Form is the current form data document.
	Form ir.Object `json:"form"`
}

// PatchResponse carries the pass updates and the patched form.
type PatchResponse struct {
	PassID  string            `json:"pass_id"`
	Updates []ir.UpdateResult `json:"updates"`
	Form    ir.Value          `json:"form"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) listDialogs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"dialogs": s.names})
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dialog(w, r)
	if !ok {
		return
	}

	var req ir.Request
	if !s.decode(w, r, &req) {
		return
	}

	resp, err := d.Trigger(r.Context(), req)
	if err != nil {
		s.triggerFailed(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dialog(w, r)
	if !ok {
		return
	}

	var body PatchRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Form == nil {
		body.Form = ir.Object{}
	}

	resp, err := d.Trigger(r.Context(), body.Request)
	if err != nil {
		s.triggerFailed(w, err)
		return
	}

	doc, err := ir.MarshalValue(body.Form)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patched, err := patch.Apply(doc, resp.Updates)
	if err != nil {
		s.logger.Error("patch failed", "dialog", d.Name(), "pass_id", resp.PassID, "error", err)
		s.writeError(w, http.StatusInternalServerError, genericFailure)
		return
	}
	form, err := ir.UnmarshalValue(patched)
	if err != nil {
		s.logger.Error("patched form unreadable", "dialog", d.Name(), "pass_id", resp.PassID, "error", err)
		s.writeError(w, http.StatusInternalServerError, genericFailure)
		return
	}

	s.writeJSON(w, http.StatusOK, PatchResponse{
		PassID:  resp.PassID,
		Updates: resp.Updates,
		Form:    form,
	})
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dialog(w, r)
	if !ok {
		return
	}

	var plan *graph.Plan
	if kind := r.URL.Query().Get("trigger_kind"); kind != "" {
		t := ir.Trigger{Kind: ir.TriggerKind(kind), Target: r.URL.Query().Get("target")}
		p, err := d.Plan(t)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		plan = p
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, graph.Mermaid(d.Graph(), plan))
}

func (s *Server) listPasses(w http.ResponseWriter, r *http.Request) {
	d, ok := s.dialog(w, r)
	if !ok {
		return
	}
	if s.passes == nil {
		s.writeError(w, http.StatusNotFound, "tracing is disabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	q := store.Where(map[string]string{
		store.ColDialog:      d.Name(),
		store.ColStatus:      r.URL.Query().Get("status"),
		store.ColTriggerKind: r.URL.Query().Get("trigger_kind"),
	})
	q.Limit = limit

	recs, err := s.passes.QueryPasses(r.Context(), q)
	if err != nil {
		s.logger.Error("list passes failed", "dialog", d.Name(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not read traces")
		return
	}

	out := make([]passSummary, len(recs))
	for i, rec := range recs {
		out[i] = summarize(rec)
	}
	s.writeJSON(w, http.StatusOK, map[string][]passSummary{"passes": out})
}

type passSummary struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Trigger  string `json:"trigger"`
	Status   string `json:"status"`
	Computes int    `json:"computes"`
}

func summarize(rec store.PassRecord) passSummary {
	return passSummary{
		ID:       rec.ID,
		Seq:      rec.Seq,
		Trigger:  rec.Trigger.String(),
		Status:   rec.Status,
		Computes: rec.Computes,
	}
}

func (s *Server) dialog(w http.ResponseWriter, r *http.Request) (*engine.Dialog, bool) {
	name := chi.URLParam(r, "dialog")
	d, ok := s.dialogs[name]
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown dialog %q", name))
		return nil, false
	}
	return d, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "could not read request body")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) triggerFailed(w http.ResponseWriter, err error) {
	if engine.IsRequestError(err) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The dialog already logged the pass with its provider identity.
	s.writeError(w, http.StatusInternalServerError, genericFailure)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("response encode failed", "error", err)
		http.Error(w, genericFailure, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
