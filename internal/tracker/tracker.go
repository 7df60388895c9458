// Package tracker applies program and account operations to stored user
// records. Every change is a single read-modify-write through
// storage.UserStore.UpdateUser.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/storage"
)

// Guest account created at startup so the app is usable without sign-up.
const (
	GuestID    = "guest_user"
	GuestName  = "Guest User"
	GuestEmail = "guest@physcio.com"
)

var (
	// ErrInvalidProfile is returned for blank names, malformed emails or
	// empty message text.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrPremiumRequired is returned when a premium-only feature is used
	// by a free account.
	ErrPremiumRequired = errors.New("premium membership required")
)

// errUnchanged aborts an UpdateUser call whose mutation was a no-op.
var errUnchanged = errors.New("record unchanged")

// Service is the tracker used by the HTTP server, the MCP server and the CLI.
type Service struct {
	store           storage.UserStore
	sessionsPerWeek int
	now             func() time.Time
	metrics         *metrics.Manager
	log             *slog.Logger
}

// New creates a tracker. sessionsPerWeek is the quota used when a plan is
// accepted without one; values below 1 fall back to
// program.DefaultSessionsPerWeek.
func New(store storage.UserStore, sessionsPerWeek int, m *metrics.Manager, log *slog.Logger) *Service {
	if sessionsPerWeek < 1 {
		sessionsPerWeek = program.DefaultSessionsPerWeek
	}
	return &Service{
		store:           store,
		sessionsPerWeek: sessionsPerWeek,
		now:             time.Now,
		metrics:         m,
		log:             log,
	}
}

// User returns the stored record for id.
func (s *Service) User(ctx context.Context, id string) (*models.UserRecord, error) {
	return s.store.GetUser(ctx, id)
}

// RequirePremium returns the user if the account is premium.
func (s *Service) RequirePremium(ctx context.Context, id string) (*models.UserRecord, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsPremium {
		return nil, ErrPremiumRequired
	}
	return u, nil
}

// ProgramView is the read model for the dashboard tracker widget.
type ProgramView struct {
	HasActiveProgram  bool                    `json:"hasActiveProgram"`
	IsProgramComplete bool                    `json:"isProgramComplete"`
	Plan              *models.ExercisePlan    `json:"plan"`
	Progress          *models.ProgramProgress `json:"progress"`
	CurrentWeekPlan   *models.WeeklyPlan      `json:"currentWeekPlan"`
	RemainingThisWeek int                     `json:"remainingThisWeek"`
}

// Program returns the user's active program and its derived views.
func (s *Service) Program(ctx context.Context, id string) (*ProgramView, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewProgramView(*u), nil
}

// NewProgramView derives the tracker view from a record.
func NewProgramView(u models.UserRecord) *ProgramView {
	return &ProgramView{
		HasActiveProgram:  program.HasActiveProgram(u),
		IsProgramComplete: program.IsProgramComplete(u.ProgressData),
		Plan:              u.ActivePlan,
		Progress:          u.ProgressData,
		CurrentWeekPlan:   program.CurrentWeekPlan(u),
		RemainingThisWeek: program.RemainingSessionsThisWeek(u.ProgressData),
	}
}

// AcceptPlan makes plan the user's active program. A sessionsPerWeek of 0
// uses the configured default.
func (s *Service) AcceptPlan(ctx context.Context, id string, plan *models.ExercisePlan, sessionsPerWeek int) (*models.UserRecord, error) {
	if sessionsPerWeek == 0 {
		sessionsPerWeek = s.sessionsPerWeek
	}
	var replaced bool
	u, err := s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		replaced = program.HasActiveProgram(*u)
		next, err := program.AcceptPlan(*u, plan, sessionsPerWeek, s.now())
		if err != nil {
			return err
		}
		*u = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterPlansAccepted.Inc()
	if replaced {
		s.metrics.CounterPlansEnded.WithLabelValues(string(models.StatusReplaced)).Inc()
	}
	s.log.Info("plan accepted", "user_id", id, "plan", plan.PlanTitle,
		"weeks", plan.DurationWeeks, "sessions_per_week", sessionsPerWeek, "replaced", replaced)
	return u, nil
}

// LogSession records one completed session. AlreadyComplete and NoProgram
// leave the stored record untouched.
func (s *Service) LogSession(ctx context.Context, id string) (*models.UserRecord, program.Outcome, error) {
	var (
		outcome program.Outcome
		current models.UserRecord
	)
	u, err := s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		next, o := program.RecordSession(*u, s.now())
		outcome = o
		if o == program.OutcomeAlreadyComplete || o == program.OutcomeNoProgram {
			current = *u
			return errUnchanged
		}
		*u = next
		return nil
	})
	switch {
	case errors.Is(err, errUnchanged):
		u = &current
	case err != nil:
		return nil, "", err
	}

	s.metrics.CounterSessionsLogged.WithLabelValues(string(outcome)).Inc()
	if outcome == program.OutcomePlanCompleted {
		s.metrics.CounterPlansEnded.WithLabelValues(string(models.StatusCompleted)).Inc()
	}
	s.log.Info("session logged", "user_id", id, "outcome", outcome)
	return u, outcome, nil
}

// CompletePlan finishes the active plan early.
func (s *Service) CompletePlan(ctx context.Context, id string) (*models.UserRecord, error) {
	u, err := s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		next, err := program.CompletePlan(*u, s.now())
		if err != nil {
			return err
		}
		*u = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CounterPlansEnded.WithLabelValues(string(models.StatusCompleted)).Inc()
	s.log.Info("plan completed", "user_id", id)
	return u, nil
}

// History returns the user's ended plans, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]models.PlanHistoryItem, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return u.PlanHistory, nil
}
