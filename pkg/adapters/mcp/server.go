package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/nodeflow"
	"github.com/aretw0/nodeflow/internal/logging"
	"github.com/aretw0/nodeflow/pkg/domain"
	"github.com/aretw0/nodeflow/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StateURI names the resource exposing the whole graph.
const StateURI = "nodeflow://state"

// Engine defines what the MCP server needs from the graph.
type Engine interface {
	ports.Graph
	Run(ctx context.Context, nodeID string) (domain.TestResult, error)
	RunPipeline(ctx context.Context, nodeID string) ([]domain.TestResult, error)
}

// NodeArgs selects a node.
type NodeArgs struct {
	NodeID string `json:"node_id"`
}

// RunArgs selects a node and whether its ancestors run first.
type RunArgs struct {
	NodeID   string `json:"node_id"`
	Pipeline bool   `json:"pipeline"`
}

// DispatchArgs carries an action envelope as JSON text.
type DispatchArgs struct {
	Action string `json:"action"`
}

// DispatchResponse reports the effect of a dispatched action.
type DispatchResponse struct {
	Changed  bool   `json:"changed" jsonschema_description:"Whether the graph state changed"`
	Revision uint64 `json:"revision" jsonschema_description:"Graph revision after the dispatch"`
}

// NodeResponse describes a node with its last result and validation issues.
type NodeResponse struct {
	Configuration domain.NodeConfiguration `json:"configuration" jsonschema_description:"The user-authored node configuration"`
	Result        *domain.TestResult       `json:"result,omitempty" jsonschema_description:"The last run result, if any"`
	Errors        []domain.ValidationError `json:"errors" jsonschema_description:"Validation issues from the last run"`
}

// RunResponse holds the results of a run.
type RunResponse struct {
	Results []domain.TestResult `json:"results" jsonschema_description:"Results in execution order"`
	Error   string              `json:"error,omitempty" jsonschema_description:"Why the run stopped, if it did"`
}

// Server wraps the engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: server.NewMCPServer("nodeflow-mcp", strings.TrimSpace(nodeflow.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: dispatch_action
	s.mcpServer.AddTool(mcp.NewTool("dispatch_action",
		mcp.WithDescription("Apply one action to the graph. The action is a JSON envelope {\"type\": ..., \"payload\": {...}} using the types UPDATE_CONFIGURATION, INITIALIZE_NODE, ADD_CONNECTION, REMOVE_CONNECTION, REMOVE_NODE, CLEAR_VALIDATION_ERRORS, CLEAR_ALL_NODES."),
		mcp.WithString("action", mcp.Required(), mcp.Description("The action envelope as JSON")),
		mcp.WithOutputSchema[DispatchResponse](),
	), mcp.NewStructuredToolHandler(s.handleDispatch))

	// TOOL: get_node
	s.mcpServer.AddTool(mcp.NewTool("get_node",
		mcp.WithDescription("Get a node's configuration, last result and validation issues."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node ID")),
		mcp.WithOutputSchema[NodeResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetNode))

	// TOOL: resolved_inputs
	s.mcpServer.AddTool(mcp.NewTool("resolved_inputs",
		mcp.WithDescription("Get the data a node would receive: each upstream result projected by its output field selections."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node ID")),
	), s.handleResolvedInputs)

	// TOOL: available_outputs
	s.mcpServer.AddTool(mcp.NewTool("available_outputs",
		mcp.WithDescription("List the output field selections of every upstream node."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node ID")),
	), s.handleAvailableOutputs)

	// TOOL: run_node
	s.mcpServer.AddTool(mcp.NewTool("run_node",
		mcp.WithDescription("Validate and run a node, optionally after all of its ancestors."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("The node ID")),
		mcp.WithBoolean("pipeline", mcp.Description("Run upstream nodes first")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRun))
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args DispatchArgs) (DispatchResponse, error) {
	action, err := domain.DecodeAction([]byte(args.Action))
	if err != nil {
		return DispatchResponse{}, fmt.Errorf("invalid action: %w", err)
	}
	changed := s.engine.Dispatch(ctx, action)
	s.logger.Debug("MCP dispatch", "action", action.Type(), "changed", changed)
	return DispatchResponse{Changed: changed, Revision: s.engine.State().Revision}, nil
}

func (s *Server) handleGetNode(ctx context.Context, request mcp.CallToolRequest, args NodeArgs) (NodeResponse, error) {
	cfg, ok := s.engine.NodeConfiguration(args.NodeID)
	if !ok {
		return NodeResponse{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, args.NodeID)
	}
	resp := NodeResponse{Configuration: cfg, Errors: s.engine.ValidationErrors(args.NodeID)}
	if resp.Errors == nil {
		resp.Errors = []domain.ValidationError{}
	}
	if res, ok := s.engine.TestResult(args.NodeID); ok {
		resp.Result = &res
	}
	return resp, nil
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	if _, ok := s.engine.NodeConfiguration(args.NodeID); !ok {
		return RunResponse{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, args.NodeID)
	}
	if args.Pipeline {
		results, err := s.engine.RunPipeline(ctx, args.NodeID)
		resp := RunResponse{Results: results}
		if resp.Results == nil {
			resp.Results = []domain.TestResult{}
		}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp, nil
	}

	res, err := s.engine.Run(ctx, args.NodeID)
	if errors.Is(err, domain.ErrValidationFailed) {
		return RunResponse{Results: []domain.TestResult{}, Error: validationSummary(err, s.engine.ValidationErrors(args.NodeID))}, nil
	}
	if err != nil {
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	return RunResponse{Results: []domain.TestResult{res}}, nil
}

func (s *Server) handleResolvedInputs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.engine.NodeConfiguration(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("node not found: %s", id)), nil
	}
	return jsonResult(s.engine.ResolvedInputs(id))
}

func (s *Server) handleAvailableOutputs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.engine.NodeConfiguration(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("node not found: %s", id)), nil
	}
	return jsonResult(s.engine.AvailableOutputs(id))
}

func (s *Server) registerResources() {
	// EXPOSE: nodeflow://state
	s.mcpServer.AddResource(mcp.NewResource(StateURI, "Current Graph State",
		mcp.WithResourceDescription("Node configurations, results, validation issues and connections"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.engine.State())
		if err != nil {
			return nil, fmt.Errorf("failed to encode state: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      StateURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func validationSummary(err error, issues []domain.ValidationError) string {
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity != domain.SeverityWarning {
			msgs = append(msgs, issue.Message)
		}
	}
	if len(msgs) == 0 {
		return err.Error()
	}
	return err.Error() + ": " + strings.Join(msgs, "; ")
}
