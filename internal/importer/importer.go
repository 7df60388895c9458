package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/claude/physcio/internal/storage"
	"github.com/google/uuid"
)

// ErrBadExport is returned when an export cannot be decoded.
var ErrBadExport = errors.New("invalid export")

// Export is the browser's physcio_app_data blob. Users are kept raw so each
// one can be decoded over a record with default values.
type Export struct {
	Users         []json.RawMessage     `json:"users"`
	Announcements []models.Announcement `json:"announcements"`
	Journals      []models.Journal      `json:"journals"`
}

// Stats tracks import progress.
type Stats struct {
	UsersReceived   int `json:"usersReceived"`
	UsersInserted   int `json:"usersInserted"`
	UsersDuplicated int `json:"usersDuplicated"`
	UsersRejected   int `json:"usersRejected"`

	AnnouncementsInserted   int `json:"announcementsInserted"`
	AnnouncementsDuplicated int `json:"announcementsDuplicated"`
	JournalsInserted        int `json:"journalsInserted"`
	JournalsDuplicated      int `json:"journalsDuplicated"`

	Rejected []string `json:"rejected"`
}

// Importer loads a legacy export into a Store.
type Importer struct {
	store  storage.Store
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer.
func New(store storage.Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// ImportFile reads the export at path and imports it. Unless this is a dry
// run, the outcome is recorded in the import log.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	data, err := ReadExport(path)
	if err != nil {
		return &imp.stats, err
	}
	return imp.ImportData(ctx, filepath.Base(path), data)
}

// ImportData imports a raw (optionally gzip-compressed) export. source names
// the upload in the import log.
func (imp *Importer) ImportData(ctx context.Context, source string, data []byte) (*Stats, error) {
	start := time.Now()
	stats, err := imp.importData(ctx, source, data)
	if !imp.dryRun {
		imp.logImport(ctx, source, start, err)
	}
	return stats, err
}

func (imp *Importer) importData(ctx context.Context, source string, data []byte) (*Stats, error) {
	data, err := Unpack(data)
	if err != nil {
		return &imp.stats, fmt.Errorf("%w: %w", ErrBadExport, err)
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return &imp.stats, fmt.Errorf("%w: parsing %s: %w", ErrBadExport, source, err)
	}
	return imp.Import(ctx, exp)
}

// Import writes users, announcements and journals from exp. Records that
// already exist are counted as duplicates and left untouched.
func (imp *Importer) Import(ctx context.Context, exp Export) (*Stats, error) {
	// Phase 1: users
	if err := imp.importUsers(ctx, exp.Users); err != nil {
		return &imp.stats, fmt.Errorf("importing users: %w", err)
	}

	// Phase 2: announcements
	if err := imp.importAnnouncements(ctx, exp.Announcements); err != nil {
		return &imp.stats, fmt.Errorf("importing announcements: %w", err)
	}

	// Phase 3: journals
	if err := imp.importJournals(ctx, exp.Journals); err != nil {
		return &imp.stats, fmt.Errorf("importing journals: %w", err)
	}

	return &imp.stats, nil
}

func (imp *Importer) reject(what string, err error) {
	imp.stats.Rejected = append(imp.stats.Rejected, fmt.Sprintf("%s: %v", what, err))
	imp.log.Warn("skipping legacy record", "record", what, "error", err)
}

func (imp *Importer) importUsers(ctx context.Context, raw []json.RawMessage) error {
	imp.stats.UsersReceived += len(raw)

	for i, r := range raw {
		u, err := decodeUser(r)
		if err != nil {
			imp.stats.UsersRejected++
			imp.reject(fmt.Sprintf("user #%d", i+1), err)
			continue
		}

		if imp.dryRun {
			imp.stats.UsersInserted++
			continue
		}

		err = imp.store.CreateUser(ctx, u)
		switch {
		case err == nil:
			imp.stats.UsersInserted++
		case errors.Is(err, storage.ErrUserExists), errors.Is(err, storage.ErrEmailTaken):
			imp.stats.UsersDuplicated++
			imp.log.Info("user already present", "id", u.ID, "email", u.Email)
		case errors.Is(err, program.ErrInconsistentRecord), errors.Is(err, program.ErrMalformedPlan):
			imp.stats.UsersRejected++
			imp.reject("user "+u.ID, err)
		default:
			return fmt.Errorf("inserting user %s: %w", u.ID, err)
		}
	}
	return nil
}

// decodeUser overlays a legacy user on a default record, the way the browser
// client filled in missing fields on load.
func decodeUser(raw json.RawMessage) (models.UserRecord, error) {
	u := models.NewUserRecord("", "", "")
	if err := json.Unmarshal(raw, &u); err != nil {
		return u, err
	}

	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	if u.Name == "" {
		return u, errors.New("missing name")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return u, fmt.Errorf("invalid email %q", u.Email)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.MessagesFromAdmin == nil {
		u.MessagesFromAdmin = []models.AdminMessage{}
	}
	if u.PlanHistory == nil {
		u.PlanHistory = []models.PlanHistoryItem{}
	}

	if err := program.CheckRecord(u); err != nil {
		return u, err
	}
	return u, nil
}

func (imp *Importer) importAnnouncements(ctx context.Context, list []models.Announcement) error {
	if len(list) == 0 {
		return nil
	}
	existing, err := imp.store.ListAnnouncements(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[announcementKey(a)] = true
	}

	// Oldest first so the stored order matches the export.
	for i := len(list) - 1; i >= 0; i-- {
		a := list[i]
		if strings.TrimSpace(a.Title) == "" {
			imp.reject(fmt.Sprintf("announcement %q", a.ID), errors.New("missing title"))
			continue
		}
		key := announcementKey(a)
		if seen[key] {
			imp.stats.AnnouncementsDuplicated++
			continue
		}
		seen[key] = true

		if !imp.dryRun {
			if _, err := imp.store.AddAnnouncement(ctx, a.Title, a.Content); err != nil {
				return fmt.Errorf("inserting announcement %q: %w", a.Title, err)
			}
		}
		imp.stats.AnnouncementsInserted++
	}
	return nil
}

func announcementKey(a models.Announcement) string {
	return strings.ToLower(strings.TrimSpace(a.Title)) + "\x00" + strings.TrimSpace(a.Content)
}

func (imp *Importer) importJournals(ctx context.Context, list []models.Journal) error {
	if len(list) == 0 {
		return nil
	}
	existing, err := imp.store.ListJournals(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(existing))
	ids := make(map[string]bool, len(existing))
	for _, j := range existing {
		seen[journalKey(j)] = true
		ids[j.ID] = true
	}

	for _, j := range list {
		if strings.TrimSpace(j.Title) == "" || strings.TrimSpace(j.Link) == "" {
			imp.reject(fmt.Sprintf("journal %q", j.ID), errors.New("missing title or link"))
			continue
		}
		key := journalKey(j)
		if seen[key] {
			imp.stats.JournalsDuplicated++
			continue
		}
		seen[key] = true
		if ids[j.ID] {
			j.ID = ""
		}
		ids[j.ID] = true

		if !imp.dryRun {
			if _, err := imp.store.AddJournal(ctx, j); err != nil {
				return fmt.Errorf("inserting journal %q: %w", j.Title, err)
			}
		}
		imp.stats.JournalsInserted++
	}
	return nil
}

func journalKey(j models.Journal) string {
	return strings.ToLower(strings.TrimSpace(j.Title))
}

// logImport records the run. Failures to write the log are only logged.
func (imp *Importer) logImport(ctx context.Context, source string, start time.Time, importErr error) {
	ms := int(time.Since(start).Milliseconds())
	entry := storage.ImportLog{
		Source:                source,
		Status:                "success",
		UsersReceived:         imp.stats.UsersReceived,
		UsersInserted:         imp.stats.UsersInserted,
		AnnouncementsInserted: imp.stats.AnnouncementsInserted,
		JournalsInserted:      imp.stats.JournalsInserted,
		DurationMs:            &ms,
	}
	if importErr != nil {
		msg := importErr.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}
	if _, err := imp.store.InsertImportLog(ctx, entry); err != nil {
		imp.log.Error("failed to write import log", "error", err)
	}
}
