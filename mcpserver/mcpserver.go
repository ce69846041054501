// Package mcpserver serves the tool catalog over the Model Context Protocol
// so MCP clients can read and edit the shared proverb list directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/proverbs/core"
	"github.com/hupe1980/proverbs/logging"
	"github.com/hupe1980/proverbs/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configures an MCPServer.
type Options struct {
	Name    string
	Version string
	Logger  logging.Logger
}

// MCPServer exposes a tool.Catalog over MCP. Every call is dispatched through
// the catalog, so hooks and input validation behave as they do for agent runs.
type MCPServer struct {
	server   *mcp.Server
	catalog  *tool.Catalog
	proverbs core.ProverbStore
	logger   logging.Logger
}

// New creates an MCPServer serving catalog against the shared store.
func New(catalog *tool.Catalog, proverbs core.ProverbStore, optFns ...func(o *Options)) (*MCPServer, error) {
	opts := Options{
		Name:    "proverbs",
		Version: "0.1.0",
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &MCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		catalog:  catalog,
		proverbs: proverbs,
		logger:   opts.Logger,
	}

	for _, t := range catalog.Tools() {
		sdkTool, err := toSDKTool(t)
		if err != nil {
			return nil, err
		}
		s.server.AddTool(sdkTool, s.handler(t.Name()))
	}

	return s, nil
}

// Serve starts serving MCP requests. It reads requests from in and writes
// responses to out. It blocks until ctx is cancelled or the transport closes.
func (s *MCPServer) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	}

	return s.run(ctx, transport)
}

func (s *MCPServer) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func toSDKTool(t tool.Tool) (*mcp.Tool, error) {
	schema, err := json.Marshal(t.Parameters())
	if err != nil {
		return nil, fmt.Errorf("mcpserver: tool %s schema: %w", t.Name(), err)
	}

	return &mcp.Tool{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: json.RawMessage(schema),
	}, nil
}

// handler dispatches one MCP call. Each call runs in its own short-lived run
// context bound to the shared store; state deltas recorded by the tool are
// not persisted since MCP has no session history.
func (s *MCPServer) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := "{}"
		if len(req.Params.Arguments) > 0 {
			args = string(req.Params.Arguments)
		}

		runID := core.NewID()
		runCtx := core.NewRunContext(ctx, "mcp", runID, core.AgentInfo{Name: "mcp", Type: "mcp"},
			core.Content{}, 0, nil, nil, nil, nil, s.proverbs, s.logger)

		result, err := s.catalog.Dispatch(core.NewToolContext(runCtx, runID), name, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		text, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: encode %s result: %w", name, err)
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
		}, nil
	}
}

// nopWriteCloser wraps an io.Writer as an io.WriteCloser with a no-op Close.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
