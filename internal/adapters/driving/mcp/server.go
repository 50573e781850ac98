package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-ask/internal/logger"
)

// Version is reported to clients during initialisation.
const Version = "0.1.0"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

const instructions = "sercha-ask answers questions from a local knowledge base. " +
	"Use the ask tool for questions that need a written answer with citations, " +
	"and the search tool to browse matching passages. " +
	"Spaces and documents are readable as sercha:// resources."

// Server exposes the ask and search services as MCP tools and the document
// store as resources.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer validates ports and registers every tool and resource.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports: ports,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "sercha-ask", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	s.server.AddReceivingMiddleware(logRequests)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// logRequests logs every client request with its latency at debug level.
func logRequests(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		start := time.Now()
		res, err := next(ctx, method, req)
		if err != nil {
			logger.Warn("mcp %s failed after %s: %v", method, time.Since(start).Round(time.Millisecond), err)
			return res, err
		}
		logger.Debug("mcp %s took %s", method, time.Since(start).Round(time.Millisecond))
		return res, nil
	}
}

// Connect attaches the server to an already open transport and returns
// without waiting for the session to end.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// Run serves a single client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Info("MCP server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler serves the streamable HTTP transport. Every session shares the
// same server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP listens on addr and serves Handler until ctx is done.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts HTTP connections on ln until ctx is done. In-flight
// requests get shutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP server shutdown: %v", err)
		}
	}()

	logger.Info("MCP server listening on %s", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}
