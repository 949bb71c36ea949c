package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/internal/presentation/graph"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/fieldpath"
	graphstore "github.com/aretw0/nodeflow/pkg/graph"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Engine is what the API needs from the graph: queries, dispatch, runs and
// change notifications.
type Engine interface {
	ports.Graph
	Run(ctx context.Context, nodeID string) (domain.TestResult, error)
	RunPipeline(ctx context.Context, nodeID string) ([]domain.TestResult, error)
	Subscribe() (<-chan graphstore.Notification, func())
}

// Server serves the graph as a JSON API.
type Server struct {
	Engine  Engine
	logger  *slog.Logger
	metrics http.Handler
	newID   func() string
}

// Option defines a functional option for the handler.
type Option func(*Server)

// WithLogger configures the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithIDGenerator replaces the generator of IDs for nodes created through POST /nodes.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine: engine,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/actions", s.DispatchAction)
	r.Get("/state", s.GetState)
	r.Get("/graph.mmd", s.GetMermaid)
	r.Get("/events", s.SubscribeEvents)

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.ListNodes)
		r.Post("/", s.CreateNode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetNode)
			r.Delete("/", s.DeleteNode)
			r.Get("/result", s.GetResult)
			r.Get("/errors", s.GetErrors)
			r.Get("/upstream", s.GetUpstream)
			r.Get("/available-outputs", s.GetAvailableOutputs)
			r.Get("/inputs", s.GetInputs)
			r.Get("/paths", s.GetPaths)
			r.Post("/run", s.RunNode)
			r.Post("/pipeline", s.RunPipeline)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DispatchResponse is returned by POST /actions.
type DispatchResponse struct {
	Changed  bool   `json:"changed"`
	Revision uint64 `json:"revision"`
}

// DispatchAction handles POST /actions with an action envelope.
func (s *Server) DispatchAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.fail(w, http.StatusRequestEntityTooLarge, "request body too large", err)
		return
	}
	action, err := domain.DecodeAction(body)
	if err != nil {
		s.fail(w, http.StatusBadRequest, "invalid action", err)
		return
	}
	changed := s.Engine.Dispatch(r.Context(), action)
	s.respond(w, http.StatusOK, DispatchResponse{Changed: changed, Revision: s.Engine.State().Revision})
}

// CreateNodeRequest is the body of POST /nodes.
type CreateNodeRequest struct {
	Kind      domain.NodeKind      `json:"kind"`
	Label     string               `json:"label,omitempty"`
	Request   *domain.RequestSpec  `json:"request,omitempty"`
	Operation domain.OperationType `json:"operation,omitempty"`
}

// CreateNode handles POST /nodes. The node gets a generated ID.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body CreateNodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if body.Kind != domain.NodeKindSource && body.Kind != domain.NodeKindTransform {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("unknown node kind %q", body.Kind), nil)
		return
	}

	id := s.newID()
	s.Engine.Dispatch(r.Context(), domain.InitializeNode{
		NodeID:    id,
		Kind:      body.Kind,
		Request:   body.Request,
		Operation: body.Operation,
		Label:     body.Label,
	})
	cfg, _ := s.Engine.NodeConfiguration(id)
	w.Header().Set("Location", "/nodes/"+id)
	s.respond(w, http.StatusCreated, cfg)
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.Engine.State())
}

// ListNodes handles GET /nodes, sorted by ID.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	st := s.Engine.State()
	nodes := make([]domain.NodeConfiguration, 0, len(st.Configurations))
	for _, id := range st.NodeIDs() {
		nodes = append(nodes, st.Configurations[id])
	}
	s.respond(w, http.StatusOK, nodes)
}

// GetNode handles GET /nodes/{id}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, cfg)
}

// DeleteNode handles DELETE /nodes/{id}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	s.Engine.Dispatch(r.Context(), domain.RemoveNode{NodeID: cfg.ID})
	w.WriteHeader(http.StatusNoContent)
}

// GetResult handles GET /nodes/{id}/result.
func (s *Server) GetResult(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	res, ok := s.Engine.TestResult(cfg.ID)
	if !ok {
		s.fail(w, http.StatusNotFound, "node has no result", nil)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// GetErrors handles GET /nodes/{id}/errors.
func (s *Server) GetErrors(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	issues := s.Engine.ValidationErrors(cfg.ID)
	if issues == nil {
		issues = []domain.ValidationError{}
	}
	s.respond(w, http.StatusOK, issues)
}

// GetUpstream handles GET /nodes/{id}/upstream.
func (s *Server) GetUpstream(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	up := s.Engine.UpstreamNodes(cfg.ID)
	if up == nil {
		up = []domain.NodeConfiguration{}
	}
	s.respond(w, http.StatusOK, up)
}

// GetAvailableOutputs handles GET /nodes/{id}/available-outputs.
func (s *Server) GetAvailableOutputs(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, s.Engine.AvailableOutputs(cfg.ID))
}

// GetInputs handles GET /nodes/{id}/inputs.
func (s *Server) GetInputs(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	s.respond(w, http.StatusOK, s.Engine.ResolvedInputs(cfg.ID))
}

// GetPaths handles GET /nodes/{id}/paths?mode=template|concrete: the paths
// that can be selected from the node's last result.
func (s *Server) GetPaths(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.node(w, r)
	if !ok {
		return
	}
	paths := []string{}
	if res, ok := s.Engine.TestResult(cfg.ID); ok && res.Success {
		if found := fieldpath.Enumerate(res.Value, fieldpath.ParseMode(r.URL.Query().Get("mode"))); found != nil {
			paths = found
		}
	}
	s.respond(w, http.StatusOK, paths)
}

// RunNode handles POST /nodes/{id}/run.
func (s *Server) RunNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := s.Engine.Run(r.Context(), id)
	if err != nil {
		s.runFailed(w, id, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

// PipelineResponse is returned by POST /nodes/{id}/pipeline.
type PipelineResponse struct {
	Results []domain.TestResult `json:"results"`
	Error   string              `json:"error,omitempty"`
}

// RunPipeline handles POST /nodes/{id}/pipeline. A failed node still answers
// 200 with the results gathered so far and the failure message.
func (s *Server) RunPipeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.Engine.NodeConfiguration(id); !ok {
		s.fail(w, http.StatusNotFound, "node not found", nil)
		return
	}
	results, err := s.Engine.RunPipeline(r.Context(), id)
	if errors.Is(err, domain.ErrCycle) {
		s.fail(w, http.StatusConflict, "graph contains a cycle", err)
		return
	}
	resp := PipelineResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []domain.TestResult{}
	}
	if err != nil {
		resp.Error = err.Error()
	}
	s.respond(w, http.StatusOK, resp)
}

// GetMermaid handles GET /graph.mmd.
func (s *Server) GetMermaid(w http.ResponseWriter, r *http.Request) {
	st := s.Engine.State()
	w.Header().Set("Content-Type", "text/vnd.mermaid; charset=utf-8")
	_, _ = io.WriteString(w, graph.GenerateMermaid(st, graph.OverlayFromState(st)))
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]any{
		"app":      "nodeflow-http",
		"version":  strings.TrimSpace(nodeflow.Version),
		"revision": s.Engine.State().Revision,
	})
}

// SubscribeEvents handles the GET /events request (SSE). Every effective
// change is sent as a notification carrying the state diff. The optional
// node query parameter keeps only changes touching that node.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.Engine.Subscribe()
	defer cancel()

	nodeID := r.URL.Query().Get("node")
	s.logger.Info("SSE: client subscribed", "node", nodeID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(30 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected")
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-events:
			if !ok {
				return
			}
			if nodeID != "" && !touches(n.Diff, nodeID) {
				continue
			}
			data, err := json.Marshal(n)
			if err != nil {
				s.logger.Error("SSE: failed to encode notification", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func touches(d *domain.StateDiff, nodeID string) bool {
	if d == nil {
		return false
	}
	for _, ids := range [][]string{d.ChangedNodes, d.RemovedNodes, d.Results, d.ValidationErrors} {
		for _, id := range ids {
			if id == nodeID {
				return true
			}
		}
	}
	return d.Connections
}

// -- Helpers --

func (s *Server) node(w http.ResponseWriter, r *http.Request) (domain.NodeConfiguration, bool) {
	cfg, ok := s.Engine.NodeConfiguration(chi.URLParam(r, "id"))
	if !ok {
		s.fail(w, http.StatusNotFound, "node not found", nil)
	}
	return cfg, ok
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string                   `json:"error"`
	Detail string                   `json:"detail,omitempty"`
	Issues []domain.ValidationError `json:"issues,omitempty"`
}

func (s *Server) runFailed(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNodeNotFound):
		s.fail(w, http.StatusNotFound, "node not found", err)
	case errors.Is(err, domain.ErrValidationFailed):
		s.respond(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "node validation failed",
			Issues: s.Engine.ValidationErrors(id),
		})
	case errors.Is(err, domain.ErrNoExecutor):
		s.fail(w, http.StatusNotImplemented, "no executor for node kind", err)
	default:
		s.fail(w, http.StatusInternalServerError, "run failed", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Detail = err.Error()
		s.logger.Warn("request failed", "status", status, "msg", msg, "error", err)
	}
	s.respond(w, status, resp)
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
