// Package mcpserver exposes the pipeline stages as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/labsync/internal/model"
	"github.com/sells-group/labsync/internal/monitoring"
	"github.com/sells-group/labsync/internal/stage"
)

// Error codes carried in tool error payloads.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL"
)

// Store is what the tools read directly.
type Store interface {
	Ping(ctx context.Context) error
	GetBudget(ctx context.Context, id string) (*model.Budget, error)
	GetBudgetByMeeting(ctx context.Context, meetingID string) (*model.Budget, error)
}

// Extractor runs the extraction stage.
type Extractor interface {
	ExtractAndSave(ctx context.Context, messageID string) (*model.Meeting, error)
}

// Designer runs the design stage.
type Designer interface {
	DesignAndSave(ctx context.Context, meetingID string) (*model.Budget, error)
}

// Stats produces the monitoring snapshot.
type Stats interface {
	Collect(ctx context.Context) (*monitoring.Snapshot, error)
}

// Handlers holds dependencies for the tool handlers.
type Handlers struct {
	store      Store
	extraction Extractor
	design     Designer
	stats      Stats
}

// NewHandlers creates the tool handlers.
func NewHandlers(st Store, extraction Extractor, design Designer, stats Stats) *Handlers {
	return &Handlers{store: st, extraction: extraction, design: design, stats: stats}
}

// NewServer registers every tool on a new MCP server.
func NewServer(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer("labsync", version, server.WithToolCapabilities(true))

	s.AddTool(mcp.NewTool("health_check",
		mcp.WithDescription("Check store connectivity and report pipeline counts."),
	), h.HandleHealth)

	s.AddTool(mcp.NewTool("extract_meeting",
		mcp.WithDescription("Extract structured meeting details from a stored Telegram message."),
		mcp.WithString("message_id", mcp.Required(), mcp.Description("Internal message id")),
	), h.HandleExtract)

	s.AddTool(mcp.NewTool("design_budget",
		mcp.WithDescription("Design a project budget for an extracted meeting."),
		mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting id")),
	), h.HandleDesign)

	s.AddTool(mcp.NewTool("get_budget",
		mcp.WithDescription("Fetch a budget by id or by the meeting it was designed for."),
		mcp.WithString("budget_id", mcp.Description("Budget id")),
		mcp.WithString("meeting_id", mcp.Description("Meeting id, used when budget_id is empty")),
	), h.HandleGetBudget)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

type extractRequest struct {
	MessageID string `json:"message_id"`
}

type designRequest struct {
	MeetingID string `json:"meeting_id"`
}

type getBudgetRequest struct {
	BudgetID  string `json:"budget_id"`
	MeetingID string `json:"meeting_id"`
}

type healthResult struct {
	Status   string               `json:"status"`
	Snapshot *monitoring.Snapshot `json:"snapshot"`
}

// HandleHealth pings the store and returns a snapshot.
func (h *Handlers) HandleHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.store.Ping(ctx); err != nil {
		return errorResult(eris.Wrap(err, "mcp: ping store")), nil
	}
	snap, err := h.stats.Collect(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(healthResult{Status: "ok", Snapshot: snap})
}

// HandleExtract runs extraction for message_id.
func (h *Handlers) HandleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[extractRequest](req)
	if err != nil {
		return invalid(err.Error()), nil
	}
	if args.MessageID == "" {
		return invalid("message_id is required"), nil
	}
	meeting, err := h.extraction.ExtractAndSave(ctx, args.MessageID)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(meeting)
}

// HandleDesign runs budget design for meeting_id.
func (h *Handlers) HandleDesign(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[designRequest](req)
	if err != nil {
		return invalid(err.Error()), nil
	}
	if args.MeetingID == "" {
		return invalid("meeting_id is required"), nil
	}
	budget, err := h.design.DesignAndSave(ctx, args.MeetingID)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultJSON(budget)
}

// HandleGetBudget looks a budget up by budget_id, falling back to meeting_id.
func (h *Handlers) HandleGetBudget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[getBudgetRequest](req)
	if err != nil {
		return invalid(err.Error()), nil
	}

	var budget *model.Budget
	switch {
	case args.BudgetID != "":
		budget, err = h.store.GetBudget(ctx, args.BudgetID)
	case args.MeetingID != "":
		budget, err = h.store.GetBudgetByMeeting(ctx, args.MeetingID)
	default:
		return invalid("budget_id or meeting_id is required"), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	if budget == nil {
		return errorResult(eris.Wrap(stage.ErrNotFound, "budget")), nil
	}
	return mcp.NewToolResultJSON(budget)
}

func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, eris.Wrap(err, "marshal args")
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, eris.Wrap(err, "unmarshal args")
	}
	return out, nil
}

func invalid(msg string) *mcp.CallToolResult {
	return toolError(CodeInvalidRequest, msg)
}

// errorResult hides internal error text from the client.
func errorResult(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, stage.ErrNotFound):
		return toolError(CodeNotFound, err.Error())
	case errors.Is(err, stage.ErrInvalidInput):
		return toolError(CodeInvalidRequest, err.Error())
	}
	zap.L().Error("mcp: tool failed", zap.Error(err))
	return toolError(CodeInternal, "an internal error occurred")
}

func toolError(code, msg string) *mcp.CallToolResult {
	payload := map[string]any{"error": map[string]string{"code": code, "message": msg}}
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}
