// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the saved resume analyses to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/cvdesk/internal/analysisservice"
	"github.com/starford/cvdesk/internal/apperr"
)

const sectionFormatURI = "cvdesk://section-format"

// Server wraps the MCP server with cvdesk tools.
type Server struct {
	mcp *server.MCPServer
	svc *analysisservice.Service
}

// New creates a new MCP server with all cvdesk tools registered.
func New(svc *analysisservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"cvdesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List saved resume analyses, newest first. "+
			"Each item carries the createdAt identity used by the other tools."),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("read_analysis",
		mcp.WithDescription("Read one saved analysis: its sections, overall score, "+
			"ATS score and highlights."),
		mcp.WithString("createdAt", mcp.Required(), mcp.Description("Record identity from list_history")),
	), s.readAnalysis)

	s.mcp.AddTool(mcp.NewTool("export_analysis",
		mcp.WithDescription("Render a saved analysis as the plain-text feedback download."),
		mcp.WithString("createdAt", mcp.Required(), mcp.Description("Record identity from list_history")),
	), s.exportAnalysis)

	s.mcp.AddTool(mcp.NewTool("get_section_contract",
		mcp.WithDescription("Returns the analysis text format the sections are parsed from."),
	), s.getSectionContract)

	s.mcp.AddResource(
		mcp.NewResource(sectionFormatURI, "Analysis Section Format",
			mcp.WithResourceDescription("How analysis text is split into titled sections and scored."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSectionFormatResource,
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

func (s *Server) listHistory(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs := s.svc.History()
	if len(recs) == 0 {
		return mcp.NewToolResultText("no saved analyses"), nil
	}
	out, _ := json.MarshalIndent(recs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readAnalysis(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	createdAt, err := req.RequireString("createdAt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Record(createdAt)
	if err != nil {
		return toolError(createdAt, err), nil
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) exportAnalysis(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	createdAt, err := req.RequireString("createdAt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := s.svc.ExportText(createdAt)
	if err != nil {
		return toolError(createdAt, err), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) getSectionContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SectionFormatContract), nil
}

func (s *Server) readSectionFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      sectionFormatURI,
			MIMEType: "text/markdown",
			Text:     SectionFormatContract,
		},
	}, nil
}

func toolError(createdAt string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", createdAt))
	}
	return mcp.NewToolResultError(err.Error())
}
