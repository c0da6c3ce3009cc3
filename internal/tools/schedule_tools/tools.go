package schedule_tools

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/whenfree/whenfree/internal/engine"
	"github.com/whenfree/whenfree/internal/instrumentation"
)

// Deps carries what every tool handler needs.
type Deps struct {
	Engine  *engine.Engine
	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// RegisterScheduleTools registers all schedule and availability tools with
// the MCP server. When readOnly is set the event mutation tools are left out.
func RegisterScheduleTools(s *mcpserver.MCPServer, deps *Deps, readOnly bool) error {
	scheduleTool := mcp.NewTool("schedule_get",
		mcp.WithDescription("Get the merged schedule across all linked Google accounts for a date range"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("startDate",
			mcp.Required(),
			mcp.Description("First day of the range (YYYY-MM-DD, interpreted in timeZone)"),
		),
		mcp.WithString("endDate",
			mcp.Description("Last day of the range, inclusive (YYYY-MM-DD). Defaults to startDate."),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for the range (e.g., 'America/Los_Angeles'). Defaults to the server time zone."),
		),
	)
	s.AddTool(scheduleTool, instrumented("schedule_get", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleScheduleGet(ctx, request, deps)
	}))

	getEventTool := mcp.NewTool("event_get",
		mcp.WithDescription("Get details of a specific event by calendar and event id, searching all linked accounts"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("Provider calendar ID (use 'primary' for the primary calendar)"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to retrieve"),
		),
	)
	s.AddTool(getEventTool, instrumented("event_get", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleEventGet(ctx, request, deps)
	}))

	availabilityTool := mcp.NewTool("availability_find",
		mcp.WithDescription("Find free time slots of a given duration across all linked accounts and optional attendees"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("startDate",
			mcp.Required(),
			mcp.Description("First day of the search range (YYYY-MM-DD)"),
		),
		mcp.WithString("endDate",
			mcp.Description("Last day of the search range, inclusive (YYYY-MM-DD). Defaults to startDate."),
		),
		mcp.WithString("timeZone",
			mcp.Description("IANA time zone for the range. Defaults to the server time zone."),
		),
		mcp.WithNumber("durationMinutes",
			mcp.Required(),
			mcp.Description("Required slot length in minutes"),
		),
		mcp.WithString("participants",
			mcp.Description("Comma-separated attendee email addresses to include in the free/busy check"),
		),
	)
	s.AddTool(availabilityTool, instrumented("availability_find", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleAvailabilityFind(ctx, request, deps)
	}))

	createEventTool := mcp.NewTool("event_create",
		mcp.WithDescription("Create a new event in a calendar on any linked account with write access"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Description("Provider calendar ID (default: 'primary')"),
		),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description("Event title"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time (RFC3339, e.g., '2026-01-15T14:00:00Z')"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time (RFC3339)"),
		),
		mcp.WithString("timeZone",
			mcp.Description("Time zone for the event (e.g., 'Europe/Berlin'). Defaults to the server time zone."),
		),
		mcp.WithString("attendees",
			mcp.Description("Comma-separated attendee email addresses"),
		),
		mcp.WithBoolean("allDay",
			mcp.Description("Create as an all-day event (only the date portion of start/end is used)"),
		),
	)

	updateEventTool := mcp.NewTool("event_update",
		mcp.WithDescription("Update fields of an existing event; omitted fields keep their current value"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("Provider calendar ID"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to update"),
		),
		mcp.WithString("summary",
			mcp.Description("New event title"),
		),
		mcp.WithString("description",
			mcp.Description("New event description"),
		),
		mcp.WithString("location",
			mcp.Description("New event location"),
		),
		mcp.WithString("start",
			mcp.Description("New start time (RFC3339)"),
		),
		mcp.WithString("end",
			mcp.Description("New end time (RFC3339)"),
		),
	)

	deleteEventTool := mcp.NewTool("event_delete",
		mcp.WithDescription("Delete an event from a calendar"),
		mcp.WithString("user",
			mcp.Description("User identifier (default: 'default')"),
		),
		mcp.WithString("calendarId",
			mcp.Required(),
			mcp.Description("Provider calendar ID"),
		),
		mcp.WithString("eventId",
			mcp.Required(),
			mcp.Description("The ID of the event to delete"),
		),
	)

	if !readOnly {
		s.AddTool(createEventTool, instrumented("event_create", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleEventCreate(ctx, request, deps)
		}))
		s.AddTool(updateEventTool, instrumented("event_update", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleEventUpdate(ctx, request, deps)
		}))
		s.AddTool(deleteEventTool, instrumented("event_delete", deps, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleEventDelete(ctx, request, deps)
		}))
	}

	return nil
}
