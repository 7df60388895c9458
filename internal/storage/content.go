package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListAnnouncements returns announcements newest first.
func (db *DB) ListAnnouncements(ctx context.Context) ([]models.Announcement, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, title, content, created_at FROM announcements ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying announcements: %w", err)
	}
	defer rows.Close()

	result := []models.Announcement{}
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning announcement: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		result = append(result, a)
	}
	return result, rows.Err()
}

// AddAnnouncement stores a new announcement with a generated ID.
func (db *DB) AddAnnouncement(ctx context.Context, title, content string) (*models.Announcement, error) {
	a := &models.Announcement{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO announcements (id, title, content, created_at) VALUES ($1,$2,$3,$4)`,
		a.ID, a.Title, a.Content, a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting announcement: %w", err)
	}
	return a, nil
}

// UpdateAnnouncement replaces title and content.
func (db *DB) UpdateAnnouncement(ctx context.Context, a models.Announcement) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE announcements SET title = $2, content = $3 WHERE id = $1`,
		a.ID, a.Title, a.Content)
	if err != nil {
		return fmt.Errorf("updating announcement %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAnnouncement removes an announcement.
func (db *DB) DeleteAnnouncement(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting announcement %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListJournals returns journals sorted by title.
func (db *DB) ListJournals(ctx context.Context) ([]models.Journal, error) {
	rows, err := db.Pool.Query(ctx,
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
func (db *DB) AddJournal(ctx context.Context, j models.Journal) (*models.Journal, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO journals (id, title, publisher, year, link) VALUES ($1,$2,$3,$4,$5)`,
		j.ID, j.Title, j.Publisher, j.Year, j.Link)
	if err != nil {
		return nil, fmt.Errorf("inserting journal: %w", err)
	}
	return &j, nil
}

// UpdateJournal replaces every field of a journal.
func (db *DB) UpdateJournal(ctx context.Context, j models.Journal) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE journals SET title = $2, publisher = $3, year = $4, link = $5 WHERE id = $1`,
		j.ID, j.Title, j.Publisher, j.Year, j.Link)
	if err != nil {
		return fmt.Errorf("updating journal %s: %w", j.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteJournal removes a journal.
func (db *DB) DeleteJournal(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM journals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting journal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedJournals inserts the default journal list into an empty table.
func (db *DB) SeedJournals(ctx context.Context) error {
	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals`).Scan(&n); err != nil {
		return fmt.Errorf("counting journals: %w", err)
	}
	if n > 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, j := range models.DefaultJournals {
		batch.Queue(`INSERT INTO journals (id, title, publisher, year, link) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`,
			fmt.Sprintf("journal_%d", i+1), j.Title, j.Publisher, j.Year, j.Link)
	}
	if err := db.Pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seeding journals: %w", err)
	}
	return nil
}
