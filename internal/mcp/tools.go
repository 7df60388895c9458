package mcp

import (
	"context"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

// historyRange parses optional start/end bounds for the plan history. An
// empty bound is open. A date-only end covers that whole day.
func historyRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time

	if startStr != "" {
		t, _, err := parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}

	if endStr != "" {
		t, dateOnly, err := parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		}
		end = t
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, bool, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, false, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}

func filterHistory(items []models.PlanHistoryItem, start, end time.Time) []models.PlanHistoryItem {
	out := []models.PlanHistoryItem{}
	for _, it := range items {
		if !start.IsZero() && it.CompletedDate.Before(start) {
			continue
		}
		if !end.IsZero() && !it.CompletedDate.Before(end) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// requestUser resolves the user a tool call acts on: an explicit user_id
// argument wins over the transport's user.
func requestUser(ctx context.Context, req mcp.CallToolRequest) string {
	if id := req.GetString("user_id", ""); id != "" {
		return id
	}
	return UserIDFromContext(ctx)
}

// --- Tool definitions ---

var userIDParam = mcp.WithString("user_id", mcp.Description("User ID (defaults to the connected user)"))

var toolGetProgramStatus = mcp.NewTool("get_program_status",
	mcp.WithDescription("Get the active exercise plan with progress percent, current week, sessions completed and whether the program is finished"),
	userIDParam,
)

var toolGetCurrentWeek = mcp.NewTool("get_current_week",
	mcp.WithDescription("Get this week's exercises and how many sessions remain before the week is done"),
	userIDParam,
)

var toolLogSession = mcp.NewTool("log_session",
	mcp.WithDescription("Record one completed exercise session. Finishing the last session moves the plan to history as Completed"),
	userIDParam,
)

var toolCompletePlan = mcp.NewTool("complete_plan",
	mcp.WithDescription("Mark the active plan done now and archive it as Completed"),
	userIDParam,
)

var toolGetPlanHistory = mcp.NewTool("get_plan_history",
	mcp.WithDescription("List plans that have ended, in the order they ended"),
	userIDParam,
	mcp.WithString("start", mcp.Description("Only plans ended at or after this time (ISO 8601 or YYYY-MM-DD)")),
	mcp.WithString("end", mcp.Description("Only plans ended before this time; a date covers the whole day")),
)

var toolGetMessages = mcp.NewTool("get_messages",
	mcp.WithDescription("List messages the clinic sent to the user"),
	userIDParam,
	mcp.WithBoolean("unread_only", mcp.Description("Only return unread messages")),
)

var toolListAnnouncements = mcp.NewTool("list_announcements",
	mcp.WithDescription("List clinic announcements, newest first"),
)

var toolListJournals = mcp.NewTool("list_journals",
	mcp.WithDescription("List curated physiotherapy journal articles"),
)

// --- Tool handlers ---

func (h *handlers) getProgramStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := h.ds.Program(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp get_program_status", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(view)
}

func (h *handlers) getCurrentWeek(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := h.ds.Program(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp get_current_week", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if !view.HasActiveProgram {
		return mcp.NewToolResultText("No active program."), nil
	}

	type weekResult struct {
		Week              int                `json:"week"`
		Plan              *models.WeeklyPlan `json:"plan"`
		RemainingThisWeek int                `json:"remainingThisWeek"`
		IsProgramComplete bool               `json:"isProgramComplete"`
	}
	return jsonResult(weekResult{
		Week:              view.Progress.CurrentWeek,
		Plan:              view.CurrentWeekPlan,
		RemainingThisWeek: view.RemainingThisWeek,
		IsProgramComplete: view.IsProgramComplete,
	})
}

func (h *handlers) logSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, outcome, err := h.ds.LogSession(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp log_session", "error", err)
		return mcp.NewToolResultError("log session failed: " + err.Error()), nil
	}

	type logResult struct {
		Outcome  string                  `json:"outcome"`
		Progress *models.ProgramProgress `json:"progress"`
		History  int                     `json:"plansInHistory"`
	}
	return jsonResult(logResult{
		Outcome:  string(outcome),
		Progress: u.ProgressData,
		History:  len(u.PlanHistory),
	})
}

func (h *handlers) completePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	u, err := h.ds.CompletePlan(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp complete_plan", "error", err)
		return mcp.NewToolResultError("complete plan failed: " + err.Error()), nil
	}
	return jsonResult(u.PlanHistory)
}

func (h *handlers) getPlanHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := historyRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	items, err := h.ds.History(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp get_plan_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(filterHistory(items, start, end))
}

func (h *handlers) getMessages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msgs, err := h.ds.Messages(ctx, requestUser(ctx, req))
	if err != nil {
		h.log.Error("mcp get_messages", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if req.GetBool("unread_only", false) {
		unread := []models.AdminMessage{}
		for _, m := range msgs {
			if !m.Read {
				unread = append(unread, m)
			}
		}
		msgs = unread
	}
	return jsonResult(msgs)
}

func (h *handlers) listAnnouncements(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.Announcements(ctx)
	if err != nil {
		h.log.Error("mcp list_announcements", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func (h *handlers) listJournals(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := h.ds.Journals(ctx)
	if err != nil {
		h.log.Error("mcp list_journals", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(list)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
