// Package control exposes the pipeline over the Model Context Protocol so
// an AI agent or automation script can inspect and steer it (spec
// SPEC_FULL.md §4.K). Server construction and the tool-registration shape
// follow MCPServer (mcp_server.go): a mark3labs/mcp-go server wrapping a
// handful of read/write tools, served over a StreamableHTTPServer.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sunaitech/polarflux/internal/config"
	"github.com/sunaitech/polarflux/internal/telemetry"
)

// StatusFunc returns the current read-only snapshot (spec §5 ownership
// rules: control never touches processing-thread state directly).
type StatusFunc func() telemetry.Snapshot

// ConfigFunc returns the active configuration bundle.
type ConfigFunc func() *config.Config

// ApplyConfigFunc hands a proposed field/value patch to the coordinator,
// which validates and, if any zone-affecting field changed, restarts the
// pipeline (spec §3, §4.J).
type ApplyConfigFunc func(patch map[string]interface{}) error

// Server wraps the MCP tool registrations over the pipeline's status and
// configuration surface.
type Server struct {
	status     StatusFunc
	getConfig  ConfigFunc
	applyPatch ApplyConfigFunc

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

// New constructs the MCP server and registers its tools.
func New(status StatusFunc, getConfig ConfigFunc, applyPatch ApplyConfigFunc) *Server {
	s := &Server{status: status, getConfig: getConfig, applyPatch: applyPatch}

	s.mcpServer = server.NewMCPServer(
		"polarflux",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("get_status",
			mcp.WithDescription("Get the current pipeline status: run ID, scene intensity, whether power limiting is engaged, and the measured frame rate."),
		),
		s.handleGetStatus,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_zone_colors",
			mcp.WithDescription("Get the current smoothed RGB color for every LED zone, in index order (CW starting at bottom-left)."),
		),
		s.handleGetZoneColors,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_config",
			mcp.WithDescription("Update one configuration field: gamma, saturation, brightness, calibration_r, calibration_g, calibration_b or power_limit. Other field names are accepted but change nothing. Changing a zone-affecting field restarts the pipeline."),
			mcp.WithString("field",
				mcp.Description("Name of the configuration field to set"),
				mcp.Required(),
			),
			mcp.WithString("value",
				mcp.Description("New value, as a string to be parsed according to the field's type"),
				mcp.Required(),
			),
		),
		s.handleSetConfig,
	)
}

// ServeHTTP dispatches MCP protocol requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.ServeHTTP(w, r)
}

func (s *Server) handleGetStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.status()
	data, err := json.Marshal(map[string]interface{}{
		"run_id":          snap.RunID,
		"scene_intensity": snap.SceneIntensity,
		"power_limited":   snap.PowerLimited,
		"frame_rate":      snap.FrameRate,
		"timestamp":       snap.Timestamp,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal status: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetZoneColors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.status()
	colors := make([][3]float64, len(snap.ZoneColors))
	for i, c := range snap.ZoneColors {
		colors[i] = [3]float64{c.R, c.G, c.B}
	}
	data, err := json.Marshal(colors)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal zone colors: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleSetConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	field := req.GetString("field", "")
	value := req.GetString("value", "")
	if field == "" {
		return mcp.NewToolResultError("field is required"), nil
	}

	if err := s.applyPatch(map[string]interface{}{field: value}); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("apply config: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s updated", field)), nil
}
