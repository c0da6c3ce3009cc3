package schedule_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/whenfree/whenfree/internal/calendar"
	"github.com/whenfree/whenfree/internal/engine"
	"github.com/whenfree/whenfree/internal/logging"
)

// serviceUnavailableMsg is what callers see when the provider failed. The
// underlying cause goes to the log, never to the tool result.
const serviceUnavailableMsg = "The calendar service is currently unavailable. Please try again later."

func userFromArgs(args map[string]interface{}) string {
	if user, ok := args["user"].(string); ok && user != "" {
		return user
	}
	return "default"
}

func stringArg(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// windowFromArgs resolves startDate/endDate/timeZone into an engine window.
func windowFromArgs(args map[string]interface{}, deps *Deps) (engine.Window, *mcp.CallToolResult) {
	startDate := stringArg(args, "startDate")
	if startDate == "" {
		return engine.Window{}, mcp.NewToolResultError("startDate is required")
	}

	loc := deps.Engine.Location()
	if tz := stringArg(args, "timeZone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return engine.Window{}, mcp.NewToolResultError(fmt.Sprintf("Invalid timeZone: %v", err))
		}
		loc = l
	}

	window, err := engine.ParseWindow(startDate, stringArg(args, "endDate"), loc)
	if err != nil {
		return engine.Window{}, mcp.NewToolResultError(err.Error())
	}
	return window, nil
}

// toolError maps an engine error to a tool result. User-correctable errors
// keep their message; upstream failures are replaced with a generic one.
func toolError(err error, op string, deps *Deps) *mcp.CallToolResult {
	switch {
	case engine.IsUserError(err), engine.IsNotFound(err), engine.IsAuthError(err):
		return mcp.NewToolResultError(err.Error())
	default:
		deps.Logger.Error("tool operation failed",
			logging.Operation(op),
			logging.Status(logging.StatusError),
			logging.Err(err))
		return mcp.NewToolResultError(serviceUnavailableMsg)
	}
}

func handleScheduleGet(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	window, errResult := windowFromArgs(args, deps)
	if errResult != nil {
		return errResult, nil
	}

	schedule, err := deps.Engine.GetSchedule(ctx, user, window)
	if err != nil {
		return toolError(err, "schedule_get", deps), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schedule for %s: %d event(s)\n", window, len(schedule.Events))
	for _, ev := range schedule.Events {
		b.WriteString(formatEventLine(ev, window.Location))
	}
	if len(schedule.Events) == 0 {
		b.WriteString("No events in this range.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleEventGet(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	calendarID := stringArg(args, "calendarId")
	if calendarID == "" {
		return mcp.NewToolResultError("calendarId is required"), nil
	}
	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	ev, err := deps.Engine.GetEvent(ctx, user, calendarID, eventID)
	if err != nil {
		return toolError(err, "event_get", deps), nil
	}
	return mcp.NewToolResultText(formatEventDetail(*ev, deps.Engine.Location())), nil
}

func handleAvailabilityFind(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	window, errResult := windowFromArgs(args, deps)
	if errResult != nil {
		return errResult, nil
	}

	minutes, ok := args["durationMinutes"].(float64)
	if !ok || minutes <= 0 {
		return mcp.NewToolResultError("durationMinutes is required and must be positive"), nil
	}

	var participants []string
	if raw := stringArg(args, "participants"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				participants = append(participants, p)
			}
		}
	}

	slots, err := deps.Engine.FindFreeSlots(ctx, user, engine.AvailabilityQuery{
		Window:       window,
		Duration:     time.Duration(minutes) * time.Minute,
		Participants: participants,
	})
	if err != nil {
		return toolError(err, "availability_find", deps), nil
	}

	if len(slots) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No free %d-minute slots in %s.", int(minutes), window)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Free %d-minute slots in %s:\n", int(minutes), window)
	for _, slot := range slots {
		fmt.Fprintf(&b, "- %s to %s\n",
			slot.Start.Format("Mon 2006-01-02 15:04"),
			slot.End.Format("15:04 MST"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func handleEventCreate(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	calendarID := stringArg(args, "calendarId")
	if calendarID == "" {
		calendarID = "primary"
	}

	input, errResult := eventInputFromArgs(args, deps, true)
	if errResult != nil {
		return errResult, nil
	}

	ev, err := deps.Engine.CreateEvent(ctx, user, calendarID, input)
	if err != nil {
		return toolError(err, "event_create", deps), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event created with ID: %s\n%s",
		ev.ProviderEventID, formatEventDetail(*ev, deps.Engine.Location()))), nil
}

func handleEventUpdate(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	calendarID := stringArg(args, "calendarId")
	if calendarID == "" {
		return mcp.NewToolResultError("calendarId is required"), nil
	}
	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	input, errResult := eventInputFromArgs(args, deps, false)
	if errResult != nil {
		return errResult, nil
	}

	ev, err := deps.Engine.UpdateEvent(ctx, user, calendarID, eventID, input)
	if err != nil {
		return toolError(err, "event_update", deps), nil
	}
	return mcp.NewToolResultText("Event updated.\n" + formatEventDetail(*ev, deps.Engine.Location())), nil
}

func handleEventDelete(ctx context.Context, request mcp.CallToolRequest, deps *Deps) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	user := userFromArgs(args)

	calendarID := stringArg(args, "calendarId")
	if calendarID == "" {
		return mcp.NewToolResultError("calendarId is required"), nil
	}
	eventID := stringArg(args, "eventId")
	if eventID == "" {
		return mcp.NewToolResultError("eventId is required"), nil
	}

	if err := deps.Engine.DeleteEvent(ctx, user, calendarID, eventID); err != nil {
		return toolError(err, "event_delete", deps), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted from calendar %s.", eventID, calendarID)), nil
}

// eventInputFromArgs parses the shared create/update fields. For creation,
// start and end are required; updates pass through only what is present.
func eventInputFromArgs(args map[string]interface{}, deps *Deps, requireTimes bool) (calendar.EventInput, *mcp.CallToolResult) {
	input := calendar.EventInput{
		Summary:     stringArg(args, "summary"),
		Description: stringArg(args, "description"),
		Location:    stringArg(args, "location"),
		TimeZone:    stringArg(args, "timeZone"),
	}
	if input.TimeZone == "" && requireTimes {
		input.TimeZone = deps.Engine.Location().String()
	}

	if raw := stringArg(args, "start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return input, mcp.NewToolResultError(fmt.Sprintf("Invalid start format: %v", err))
		}
		input.Start = t
	} else if requireTimes {
		return input, mcp.NewToolResultError("start is required")
	}

	if raw := stringArg(args, "end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return input, mcp.NewToolResultError(fmt.Sprintf("Invalid end format: %v", err))
		}
		input.End = t
	} else if requireTimes {
		return input, mcp.NewToolResultError("end is required")
	}

	if allDay, ok := args["allDay"].(bool); ok {
		input.AllDay = allDay
	}
	if raw := stringArg(args, "attendees"); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				input.Attendees = append(input.Attendees, a)
			}
		}
	}
	return input, nil
}

func formatEventLine(ev calendar.Event, loc *time.Location) string {
	if ev.AllDay {
		return fmt.Sprintf("- %s  (all day)  %s [%s]\n",
			ev.Start.In(loc).Format("2006-01-02"), ev.Summary, ev.CalendarID)
	}
	return fmt.Sprintf("- %s to %s  %s [%s]\n",
		ev.Start.In(loc).Format("2006-01-02 15:04"),
		ev.End.In(loc).Format("15:04"),
		ev.Summary, ev.CalendarID)
}

func formatEventDetail(ev calendar.Event, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary: %s\n", ev.Summary)
	fmt.Fprintf(&b, "Calendar: %s\n", ev.CalendarID)
	if ev.AllDay {
		fmt.Fprintf(&b, "Date: %s (all day)\n", ev.Start.In(loc).Format("2006-01-02"))
	} else {
		fmt.Fprintf(&b, "Start: %s\n", ev.Start.In(loc).Format(time.RFC3339))
		fmt.Fprintf(&b, "End: %s\n", ev.End.In(loc).Format(time.RFC3339))
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", ev.Status)
	}
	if ev.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", ev.Description)
	}
	return b.String()
}
