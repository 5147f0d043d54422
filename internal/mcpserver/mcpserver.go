// Package mcpserver exposes schema validation as Model Context Protocol
// tools over stdio.
package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/koustreak/dbkit/internal/logger"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/report"
	"github.com/koustreak/dbkit/internal/validator"
)

const (
	serverName    = "dbkit"
	serverVersion = "1.0.0"
)

type Server struct {
	validator *validator.Validator
	tables    []*model.Table
	byName    map[string]*model.Table
	meta      report.Meta
	log       logger.Sink
}

func New(v *validator.Validator, tables []*model.Table, meta report.Meta, log logger.Sink) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		validator: v,
		tables:    tables,
		byName:    make(map[string]*model.Table, len(tables)),
		meta:      meta,
		log:       log,
	}
	for _, t := range tables {
		s.byName[t.Name] = t
	}
	return s
}

// MCP builds the protocol server with every tool registered.
func (s *Server) MCP() *server.MCPServer {
	m := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	listTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the table models dbkit validates, with their columns"),
	)
	m.AddTool(listTool, s.handleListTables)

	validateTool := mcp.NewTool("validate_schema",
		mcp.WithDescription("Compare declared table models with the live database and report every structural difference"),
		mcp.WithArray("tables",
			mcp.Description("Tables to validate (default: every declared table)"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithBoolean("strict",
			mcp.Description("Report the run as a tool error when any table differs"),
			mcp.DefaultBool(false),
		),
		mcp.WithString("format",
			mcp.Description("Output format: 'text' (default) or 'json'"),
			mcp.Enum("text", "json"),
		),
	)
	m.AddTool(validateTool, s.handleValidate)

	return m
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Infof("starting dbkit mcp server with %d table model(s)", len(s.tables))
	return server.ServeStdio(s.MCP())
}

func (s *Server) handleListTables(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	for _, t := range s.tables {
		fmt.Fprintf(&sb, "%s (%s)\n", t.String(), strings.Join(t.ColumnNames(), ", "))
	}
	if sb.Len() == 0 {
		return mcp.NewToolResultText("no table models declared"), nil
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := report.ParseFormat(request.GetString("format", "text"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	strict := request.GetBool("strict", false)

	tables := s.tables
	if names := request.GetStringSlice("tables", nil); len(names) > 0 {
		tables = make([]*model.Table, 0, len(names))
		for _, n := range names {
			t, ok := s.byName[n]
			if !ok {
				return mcp.NewToolResultErrorf("no model declared for table %q", n), nil
			}
			tables = append(tables, t)
		}
	}

	out, valid, err := s.validate(ctx, tables, format)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("schema validation failed", err), nil
	}
	if strict && !valid {
		return mcp.NewToolResultError(out), nil
	}
	return mcp.NewToolResultText(out), nil
}

// validate renders a non-strict batch run in the requested format.
func (s *Server) validate(ctx context.Context, tables []*model.Table, format report.Format) (string, bool, error) {
	started := time.Now()
	batch, err := s.validator.ValidateAll(ctx, tables, false)
	if err != nil {
		return "", false, err
	}
	rep := report.New(batch, started, s.meta)

	var buf bytes.Buffer
	if err := report.Write(&buf, format, rep, false); err != nil {
		return "", false, err
	}
	return buf.String(), batch.AllValid, nil
}
