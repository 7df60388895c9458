package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/physcio/internal/models"
)

var (
	// ErrNotFound is returned when a user, announcement or journal does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when registering an email that is already in use.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrUserExists is returned when creating a user whose ID is already stored.
	ErrUserExists = errors.New("user already exists")
	// ErrHistoryRewrite is returned when a write would drop or reorder
	// stored plan history.
	ErrHistoryRewrite = errors.New("plan history is append-only")
)

// UpdateFunc mutates a freshly loaded user record. Returning an error aborts
// the update without writing anything.
type UpdateFunc func(u *models.UserRecord) error

// UserStore persists user records by ID.
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.UserRecord, error)
	FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error)
	ListUsers(ctx context.Context) ([]models.UserRecord, error)
	CreateUser(ctx context.Context, u models.UserRecord) error
	PutUser(ctx context.Context, u models.UserRecord) error
	// UpdateUser loads, mutates and writes a record while holding a
	// per-user write lock, so concurrent updates for one user serialize.
	UpdateUser(ctx context.Context, id string, fn UpdateFunc) (*models.UserRecord, error)
}

// ContentStore persists announcements and journals.
type ContentStore interface {
	ListAnnouncements(ctx context.Context) ([]models.Announcement, error)
	AddAnnouncement(ctx context.Context, title, content string) (*models.Announcement, error)
	UpdateAnnouncement(ctx context.Context, a models.Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error

	ListJournals(ctx context.Context) ([]models.Journal, error)
	AddJournal(ctx context.Context, j models.Journal) (*models.Journal, error)
	UpdateJournal(ctx context.Context, j models.Journal) error
	DeleteJournal(ctx context.Context, id string) error
	// SeedJournals inserts models.DefaultJournals when no journals exist.
	SeedJournals(ctx context.Context) error
}

// Store is the full persistence surface. *DB (PostgreSQL) and *LocalStore
// (SQLite) both satisfy it.
type Store interface {
	UserStore
	ContentStore
	GetDataStats(ctx context.Context) (*DataStats, error)
	InsertImportLog(ctx context.Context, log ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, limit int) ([]ImportLog, error)
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*LocalStore)(nil)
)

// Backend names accepted by Open.
const (
	BackendLocal  = "local"
	BackendHosted = "hosted"
)

// Open returns the store for the configured backend. For the hosted backend
// migrations must already have been applied with RunMigrations.
func Open(ctx context.Context, backend, dsn, sqlitePath string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch backend {
	case BackendHosted:
		s, err = New(ctx, dsn)
	case BackendLocal, "":
		s, err = OpenLocal(sqlitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.SeedJournals(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("seeding journals: %w", err)
	}
	return s, nil
}

// DataStats holds aggregate counts for the admin dashboard.
type DataStats struct {
	TotalUsers     int64 `json:"totalUsers"`
	PremiumUsers   int64 `json:"premiumUsers"`
	ActivePrograms int64 `json:"activePrograms"`
	CompletedPlans int64 `json:"completedPlans"`
	ReplacedPlans  int64 `json:"replacedPlans"`
	Announcements  int64 `json:"announcements"`
	Journals       int64 `json:"journals"`
}

// ImportLog records one run of the legacy data importer.
type ImportLog struct {
	ID                    int64     `json:"id"`
	CreatedAt             time.Time `json:"createdAt"`
	Source                string    `json:"source"`
	Status                string    `json:"status"`
	UsersReceived         int       `json:"usersReceived"`
	UsersInserted         int       `json:"usersInserted"`
	AnnouncementsInserted int       `json:"announcementsInserted"`
	JournalsInserted      int       `json:"journalsInserted"`
	DurationMs            *int      `json:"durationMs"`
	ErrorMessage          *string   `json:"errorMessage"`
}

// encodeProgram marshals the plan/progress pair. Both results are nil when
// the program slot is empty.
func encodeProgram(u models.UserRecord) (plan, progress []byte, err error) {
	if u.ActivePlan != nil {
		if plan, err = json.Marshal(u.ActivePlan); err != nil {
			return nil, nil, fmt.Errorf("encoding active plan: %w", err)
		}
	}
	if u.ProgressData != nil {
		if progress, err = json.Marshal(u.ProgressData); err != nil {
			return nil, nil, fmt.Errorf("encoding progress: %w", err)
		}
	}
	return plan, progress, nil
}

func decodeProgram(u *models.UserRecord, plan, progress []byte) error {
	if len(plan) > 0 {
		u.ActivePlan = &models.ExercisePlan{}
		if err := json.Unmarshal(plan, u.ActivePlan); err != nil {
			return fmt.Errorf("decoding active plan: %w", err)
		}
	}
	if len(progress) > 0 {
		u.ProgressData = &models.ProgramProgress{}
		if err := json.Unmarshal(progress, u.ProgressData); err != nil {
			return fmt.Errorf("decoding progress: %w", err)
		}
	}
	return nil
}

// emptySlices keeps history and inbox as [] rather than null in JSON.
func emptySlices(u *models.UserRecord) {
	if u.PlanHistory == nil {
		u.PlanHistory = []models.PlanHistoryItem{}
	}
	if u.MessagesFromAdmin == nil {
		u.MessagesFromAdmin = []models.AdminMessage{}
	}
}
