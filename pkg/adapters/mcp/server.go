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

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TreeURI is the resource exposing the whole merged tree.
const TreeURI = "arbor://tree"

// Tree is the read side of an extension tree exposed to MCP clients.
type Tree interface {
	Snapshot(path string) (domain.NodeSnapshot, error)
	Errors() []domain.ReportedError
	Modules() map[string]bool
	NodesForCondition(name string) []domain.NodeSnapshot
}

// Server exposes an extension tree as an MCP Server.
type Server struct {
	tree      Tree
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(tree Tree, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tree:      tree,
		mcpServer: server.NewMCPServer("arbor-mcp", strings.TrimSpace(version)),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on addr using SSE and stops it when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+displayAddr(addr)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
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
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Get the merged extension tree, or the subtree below an extension path."),
		mcp.WithString("path", mcp.Description("Extension path such as /Workbench/Menus (optional)")),
	), s.handleGetTree)

	s.mcpServer.AddTool(mcp.NewTool("find_node",
		mcp.WithDescription("Describe a single node of the tree and its direct children."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Extension path of the node")),
	), s.handleFindNode)

	s.mcpServer.AddTool(mcp.NewTool("list_errors",
		mcp.WithDescription("List the errors reported while merging contributions."),
		mcp.WithBoolean("include_warnings", mcp.Description("Include warnings (default true)")),
	), s.handleListErrors)

	s.mcpServer.AddTool(mcp.NewTool("list_modules",
		mcp.WithDescription("List the declared modules and whether each one is loaded."),
	), s.handleListModules)

	s.mcpServer.AddTool(mcp.NewTool("nodes_for_condition",
		mcp.WithDescription("List the paths of the nodes whose visibility depends on a condition predicate."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Condition predicate name")),
	), s.handleNodesForCondition)
}

func (s *Server) handleGetTree(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	snap, err := s.tree.Snapshot(path)
	if err != nil {
		return snapshotError(path, err), nil
	}
	return jsonResult(snap)
}

func (s *Server) handleFindNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.tree.Snapshot(path)
	if err != nil {
		return snapshotError(path, err), nil
	}

	// Only one level: callers walk further with more find_node calls.
	children := make([]string, 0, len(snap.Children))
	for _, c := range snap.Children {
		children = append(children, c.ID)
	}
	snap.Children = nil
	return jsonResult(struct {
		domain.NodeSnapshot
		ChildIDs []string `json:"child_ids"`
	}{snap, children})
}

func (s *Server) handleListErrors(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	includeWarnings := request.GetBool("include_warnings", true)
	out := make([]domain.ReportedError, 0)
	for _, e := range s.tree.Errors() {
		if e.Warning && !includeWarnings {
			continue
		}
		out = append(out, e)
	}
	return jsonResult(out)
}

func (s *Server) handleListModules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.tree.Modules())
}

func (s *Server) handleNodesForCondition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0)
	for _, n := range s.tree.NodesForCondition(name) {
		paths = append(paths, n.Path)
	}
	return jsonResult(paths)
}

func snapshotError(path string, err error) *mcp.CallToolResult {
	if errors.Is(err, domain.ErrExtensionPointNotDefined) {
		return mcp.NewToolResultError(fmt.Sprintf("no node at path '%s'", path))
	}
	return mcp.NewToolResultError(fmt.Sprintf("snapshot failed: %v", err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(TreeURI, "Merged Extension Tree",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		snap, err := s.tree.Snapshot("")
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot tree: %w", err)
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("failed to encode tree: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      TreeURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
