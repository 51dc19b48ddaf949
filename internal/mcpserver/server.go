// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Dagaz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/dagaz/internal/batch"
	"github.com/starford/dagaz/internal/state"
)

// Server wraps the MCP server with Dagaz tools.
type Server struct {
	mcp  *server.MCPServer
	exec *batch.Executor
	agg  *state.Aggregator
}

// New creates a new MCP server with all Dagaz tools registered.
func New(exec *batch.Executor, agg *state.Aggregator) *Server {
	s := &Server{exec: exec, agg: agg}

	s.mcp = server.NewMCPServer(
		"Dagaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("apply_operations",
		mcp.WithDescription("Apply an ordered batch of graph operations (nodes, dependencies, plans) "+
			"as a single transaction. Either every operation commits or none do. "+
			"Operations MUST follow the canonical operation format. Read the contract first via "+
			"the get_operation_contract tool or the dagaz://operation-format resource."),
		mcp.WithString("operations", mcp.Required(), mcp.Description("JSON array of operation objects")),
	), s.applyOperations)

	s.mcp.AddTool(mcp.NewTool("apply_display_operations",
		mcp.WithDescription("Apply an ordered batch of display operations (views, positions, filters) "+
			"as a single transaction. Same format rules as apply_operations."),
		mcp.WithString("operations", mcp.Required(), mcp.Description("JSON array of display operation objects")),
	), s.applyDisplayOperations)

	s.mcp.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Return the full application state: all nodes with derived fields, "+
			"dependencies, and plans as a JSON document."),
	), s.getState)

	s.mcp.AddTool(mcp.NewTool("get_task",
		mcp.WithDescription("Return a single node with its derived fields (calculated value, "+
			"effective due date, actionability, parents, children)."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Node id")),
	), s.getTask)

	s.mcp.AddTool(mcp.NewTool("get_operation_contract",
		mcp.WithDescription("Returns the canonical Dagaz operation format contract. "+
			"Call this before applying operations to ensure correct structure."),
	), s.getOperationContract)

	// Resource: operation format contract.
	s.mcp.AddResource(
		mcp.NewResource("dagaz://operation-format", "Operation Format Contract",
			mcp.WithResourceDescription("Canonical batch operation format that all mutations must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readOperationFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) applyOperations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raws, errRes := decodeOperations(req)
	if errRes != nil {
		return errRes, nil
	}
	res := s.exec.ApplyGraph(ctx, raws)
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) applyDisplayOperations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raws, errRes := decodeOperations(req)
	if errRes != nil {
		return errRes, nil
	}
	res := s.exec.ApplyDisplay(ctx, raws)
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func decodeOperations(req mcp.CallToolRequest) ([]json.RawMessage, *mcp.CallToolResult) {
	opsJSON, err := req.RequireString("operations")
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	var raws []json.RawMessage
	if err := json.Unmarshal([]byte(opsJSON), &raws); err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("operations must be a JSON array: %s", err))
	}
	return raws, nil
}

func (s *Server) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.agg.AppState(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(snap, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	node, err := s.agg.GetNode(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(node, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getOperationContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(OperationFormatContract), nil
}

func (s *Server) readOperationFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "dagaz://operation-format",
			MIMEType: "text/markdown",
			Text:     OperationFormatContract,
		},
	}, nil
}
