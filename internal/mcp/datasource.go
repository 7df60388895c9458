package mcp

import (
	"context"

	"github.com/claude/physcio/internal/content"
	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/tracker"
)

// DataSource abstracts the data layer for MCP tools. Local (in-process
// services) and HTTPClient (remote via REST API) both satisfy it.
type DataSource interface {
	Program(ctx context.Context, userID string) (*tracker.ProgramView, error)
	LogSession(ctx context.Context, userID string) (*models.UserRecord, program.Outcome, error)
	CompletePlan(ctx context.Context, userID string) (*models.UserRecord, error)
	History(ctx context.Context, userID string) ([]models.PlanHistoryItem, error)
	Messages(ctx context.Context, userID string) ([]models.AdminMessage, error)
	Announcements(ctx context.Context) ([]models.Announcement, error)
	Journals(ctx context.Context) ([]models.Journal, error)
}

// Local serves MCP requests straight from the tracker and content services.
type Local struct {
	Tracker *tracker.Service
	Content *content.Service
}

var _ DataSource = (*Local)(nil)

func (l *Local) Program(ctx context.Context, userID string) (*tracker.ProgramView, error) {
	return l.Tracker.Program(ctx, userID)
}

func (l *Local) LogSession(ctx context.Context, userID string) (*models.UserRecord, program.Outcome, error) {
	return l.Tracker.LogSession(ctx, userID)
}

func (l *Local) CompletePlan(ctx context.Context, userID string) (*models.UserRecord, error) {
	return l.Tracker.CompletePlan(ctx, userID)
}

func (l *Local) History(ctx context.Context, userID string) ([]models.PlanHistoryItem, error) {
	return l.Tracker.History(ctx, userID)
}

func (l *Local) Messages(ctx context.Context, userID string) ([]models.AdminMessage, error) {
	return l.Tracker.Messages(ctx, userID)
}

func (l *Local) Announcements(ctx context.Context) ([]models.Announcement, error) {
	return l.Content.Announcements(ctx)
}

func (l *Local) Journals(ctx context.Context) ([]models.Journal, error) {
	return l.Content.Journals(ctx)
}
