package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/google/uuid"
)

// ListAnnouncements returns announcements newest first.
func (s *LocalStore) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at FROM announcements ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer rows.Close()

	result := []models.Announcement{}
	for rows.Next() {
		var a models.Announcement
		var created string
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &created); err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// AddAnnouncement stores a new announcement with a generated ID.
func (s *LocalStore) AddAnnouncement(ctx context.Context, title, content string) (*models.Announcement, error) {
	a := &models.Announcement{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO announcements (id, title, content, created_at) VALUES (?,?,?,?)`,
		a.ID, a.Title, a.Content, fmtTime(a.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting announcement: %w", err)
	}
	return a, nil
}

// UpdateAnnouncement replaces title and content.
func (s *LocalStore) UpdateAnnouncement(ctx context.Context, a models.Announcement) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE announcements SET title = ?, content = ? WHERE id = ?`, a.Title, a.Content, a.ID)
	if err != nil {
		return fmt.Errorf("updating announcement %s: %w", a.ID, err)
	}
	return requireRow(res)
}

// DeleteAnnouncement removes an announcement.
func (s *LocalStore) DeleteAnnouncement(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting announcement %s: %w", id, err)
	}
	return requireRow(res)
}

// ListJournals returns journals sorted by title.
func (s *LocalStore) ListJournals(ctx context.Context) ([]models.Journal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, publisher, year, link FROM journals ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("querying journals: %w", err)
	}
	defer rows.Close()

	result := []models.Journal{}
	for rows.Next() {
		var j models.Journal
		if err := rows.Scan(&j.ID, &j.Title, &j.Publisher, &j.Year, &j.Link); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// AddJournal stores a journal, generating an ID when none is set.
func (s *LocalStore) AddJournal(ctx context.Context, j models.Journal) (*models.Journal, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journals (id, title, publisher, year, link) VALUES (?,?,?,?,?)`,
		j.ID, j.Title, j.Publisher, j.Year, j.Link)
	if err != nil {
		return nil, fmt.Errorf("inserting journal: %w", err)
	}
	return &j, nil
}

// UpdateJournal replaces every field of a journal.
func (s *LocalStore) UpdateJournal(ctx context.Context, j models.Journal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journals SET title = ?, publisher = ?, year = ?, link = ? WHERE id = ?`,
		j.Title, j.Publisher, j.Year, j.Link, j.ID)
	if err != nil {
		return fmt.Errorf("updating journal %s: %w", j.ID, err)
	}
	return requireRow(res)
}

// DeleteJournal removes a journal.
func (s *LocalStore) DeleteJournal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM journals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting journal %s: %w", id, err)
	}
	return requireRow(res)
}

// SeedJournals inserts the default journal list into an empty table.
func (s *LocalStore) SeedJournals(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM journals`).Scan(&n); err != nil {
		return fmt.Errorf("counting journals: %w", err)
	}
	if n > 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO journals (id, title, publisher, year, link) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("preparing journal insert: %w", err)
	}
	defer stmt.Close()

	for i, j := range models.DefaultJournals {
		if _, err := stmt.ExecContext(ctx, fmt.Sprintf("journal_%d", i+1), j.Title, j.Publisher, j.Year, j.Link); err != nil {
			return fmt.Errorf("seeding journal %q: %w", j.Title, err)
		}
	}
	return tx.Commit()
}

// GetDataStats returns aggregate counts across all users and content.
func (s *LocalStore) GetDataStats(ctx context.Context) (*DataStats, error) {
	stats := &DataStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN is_premium THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN active_plan IS NOT NULL THEN 1 ELSE 0 END), 0)
		 FROM users`,
	).Scan(&stats.TotalUsers, &stats.PremiumUsers, &stats.ActivePrograms)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN status = 'Completed' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'Replaced' THEN 1 ELSE 0 END), 0)
		 FROM plan_history`,
	).Scan(&stats.CompletedPlans, &stats.ReplacedPlans)
	if err != nil {
		return nil, fmt.Errorf("counting plan history: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM announcements), (SELECT COUNT(*) FROM journals)`,
	).Scan(&stats.Announcements, &stats.Journals)
	if err != nil {
		return nil, fmt.Errorf("counting content: %w", err)
	}

	return stats, nil
}

// InsertImportLog creates a new import log entry and returns its ID.
func (s *LocalStore) InsertImportLog(ctx context.Context, log ImportLog) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO import_logs (created_at, source, status, users_received, users_inserted,
		 announcements_inserted, journals_inserted, duration_ms, error_message)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		fmtTime(time.Now()), log.Source, log.Status, log.UsersReceived, log.UsersInserted,
		log.AnnouncementsInserted, log.JournalsInserted, log.DurationMs, log.ErrorMessage)
	if err != nil {
		return 0, fmt.Errorf("inserting import log: %w", err)
	}
	return res.LastInsertId()
}

// QueryImportLogs returns the most recent import logs.
func (s *LocalStore) QueryImportLogs(ctx context.Context, limit int) ([]ImportLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, source, status, users_received, users_inserted,
		 announcements_inserted, journals_inserted, duration_ms, error_message
		 FROM import_logs
		 ORDER BY id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying import logs: %w", err)
	}
	defer rows.Close()

	result := []ImportLog{}
	for rows.Next() {
		var l ImportLog
		var created string
		var duration sql.NullInt64
		var msg sql.NullString
		if err := rows.Scan(&l.ID, &created, &l.Source, &l.Status, &l.UsersReceived, &l.UsersInserted,
			&l.AnnouncementsInserted, &l.JournalsInserted, &duration, &msg); err != nil {
			return nil, fmt.Errorf("scanning import log: %w", err)
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := int(duration.Int64)
			l.DurationMs = &d
		}
		if msg.Valid {
			l.ErrorMessage = &msg.String
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
