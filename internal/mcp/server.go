package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/physcio/internal/tracker"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
// Without one, requests act on the guest account.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok && id != "" {
		return id
	}
	return tracker.GuestID
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("Physcio", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Physcio rehabilitation tracker. Inspect the active exercise program, log completed sessions, review past plans, and read clinic announcements and journals. Program data is scoped to one user."),
	)

	h := &handlers{ds: ds, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetProgramStatus, Handler: h.getProgramStatus},
		server.ServerTool{Tool: toolGetCurrentWeek, Handler: h.getCurrentWeek},
		server.ServerTool{Tool: toolLogSession, Handler: h.logSession},
		server.ServerTool{Tool: toolCompletePlan, Handler: h.completePlan},
		server.ServerTool{Tool: toolGetPlanHistory, Handler: h.getPlanHistory},
		server.ServerTool{Tool: toolGetMessages, Handler: h.getMessages},
		server.ServerTool{Tool: toolListAnnouncements, Handler: h.listAnnouncements},
		server.ServerTool{Tool: toolListJournals, Handler: h.listJournals},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resProgramStatus, Handler: h.programStatus},
		server.ServerResource{Resource: resAnnouncements, Handler: h.announcements},
		server.ServerResource{Resource: resJournals, Handler: h.journals},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

// --- Resource definitions ---

var resProgramStatus = mcp.NewResource(
	"physcio://program_status",
	"Program Status",
	mcp.WithResourceDescription("Active exercise plan, progress counters and this week's remaining sessions"),
	mcp.WithMIMEType("application/json"),
)

var resAnnouncements = mcp.NewResource(
	"physcio://announcements",
	"Announcements",
	mcp.WithResourceDescription("Clinic announcements, newest first"),
	mcp.WithMIMEType("application/json"),
)

var resJournals = mcp.NewResource(
	"physcio://journals",
	"Journals",
	mcp.WithResourceDescription("Curated physiotherapy journal articles"),
	mcp.WithMIMEType("application/json"),
)
