package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
)

// GetUser loads a full user record including history and inbox.
func (s *LocalStore) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	return loadLocalUser(ctx, s.db, id)
}

// FindUserByEmail looks a user up by email, ignoring case.
func (s *LocalStore) FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE email = ? COLLATE NOCASE`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return s.GetUser(ctx, id)
}

// ListUsers returns every user in registration order.
func (s *LocalStore) ListUsers(ctx context.Context) ([]models.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.UserRecord, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, nil
}

// CreateUser inserts a new record with its history and inbox.
func (s *LocalStore) CreateUser(ctx context.Context, u models.UserRecord) error {
	if err := program.CheckRecord(u); err != nil {
		return err
	}
	plan, progress, err := encodeProgram(u)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? COLLATE NOCASE`, u.Email).Scan(&taken); err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if taken > 0 {
		return ErrEmailTaken
	}
	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ?`, u.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking user id: %w", err)
	}
	if exists > 0 {
		return ErrUserExists
	}

	now := fmtTime(time.Now())
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, age, weight, height, is_premium, active_plan, progress, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		u.ID, u.Name, u.Email, u.Age, u.Weight, u.Height, u.IsPremium,
		nullableText(plan), nullableText(progress), now, now)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	if err := writeLocalDetails(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit()
}

// PutUser overwrites a stored record. Prefer UpdateUser for
// read-modify-write cycles.
func (s *LocalStore) PutUser(ctx context.Context, u models.UserRecord) error {
	if err := program.CheckRecord(u); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := writeLocalUser(ctx, tx, u); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateUser runs fn against the stored record inside an immediate
// transaction, which holds the database write lock until commit.
func (s *LocalStore) UpdateUser(ctx context.Context, id string, fn UpdateFunc) (*models.UserRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := loadLocalUser(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	u.ID = id
	if err := program.CheckRecord(*u); err != nil {
		return nil, err
	}
	if err := writeLocalUser(ctx, tx, *u); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing user %s: %w", id, err)
	}
	return u, nil
}

func loadLocalUser(ctx context.Context, q sqlQuerier, id string) (*models.UserRecord, error) {
	var u models.UserRecord
	var plan, progress sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, email, age, weight, height, is_premium, active_plan, progress
		 FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.Weight, &u.Height,
		&u.IsPremium, &plan, &progress)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	if err := decodeProgram(&u, []byte(plan.String), []byte(progress.String)); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}

	histRows, err := q.QueryContext(ctx,
		`SELECT plan_title, duration_weeks, completed_date, status
		 FROM plan_history WHERE user_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying plan history: %w", err)
	}
	defer histRows.Close()
	for histRows.Next() {
		var h models.PlanHistoryItem
		var date, status string
		if err := histRows.Scan(&h.PlanTitle, &h.DurationWeeks, &date, &status); err != nil {
			return nil, fmt.Errorf("scanning plan history: %w", err)
		}
		if h.CompletedDate, err = parseTime(date); err != nil {
			return nil, err
		}
		h.Status = models.HistoryStatus(status)
		u.PlanHistory = append(u.PlanHistory, h)
	}
	if err := histRows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := q.QueryContext(ctx,
		`SELECT id, text, created_at, read
		 FROM admin_messages WHERE user_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying admin messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m models.AdminMessage
		var ts string
		if err := msgRows.Scan(&m.ID, &m.Text, &ts, &m.Read); err != nil {
			return nil, fmt.Errorf("scanning admin message: %w", err)
		}
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		u.MessagesFromAdmin = append(u.MessagesFromAdmin, m)
	}
	if err := msgRows.Err(); err != nil {
		return nil, err
	}

	emptySlices(&u)
	return &u, nil
}

func writeLocalUser(ctx context.Context, q sqlQuerier, u models.UserRecord) error {
	plan, progress, err := encodeProgram(u)
	if err != nil {
		return err
	}

	var taken int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? COLLATE NOCASE AND id <> ?`, u.Email, u.ID).Scan(&taken); err != nil {
		return fmt.Errorf("checking email: %w", err)
	}
	if taken > 0 {
		return ErrEmailTaken
	}

	res, err := q.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, age = ?, weight = ?, height = ?,
		 is_premium = ?, active_plan = ?, progress = ?,
		 version = version + 1, updated_at = ?
		 WHERE id = ?`,
		u.Name, u.Email, u.Age, u.Weight, u.Height, u.IsPremium,
		nullableText(plan), nullableText(progress), fmtTime(time.Now()), u.ID)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return writeLocalDetails(ctx, q, u)
}

// writeLocalDetails appends unseen history entries and upserts inbox messages.
func writeLocalDetails(ctx context.Context, q sqlQuerier, u models.UserRecord) error {
	var stored int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plan_history WHERE user_id = ?`, u.ID).Scan(&stored); err != nil {
		return fmt.Errorf("counting plan history: %w", err)
	}
	if stored > len(u.PlanHistory) {
		return fmt.Errorf("%w: %d stored entries, %d given", ErrHistoryRewrite, stored, len(u.PlanHistory))
	}
	for i := stored; i < len(u.PlanHistory); i++ {
		h := u.PlanHistory[i]
		if _, err := q.ExecContext(ctx,
			`INSERT INTO plan_history (user_id, seq, plan_title, duration_weeks, completed_date, status)
			 VALUES (?,?,?,?,?,?)`,
			u.ID, i, h.PlanTitle, h.DurationWeeks, fmtTime(h.CompletedDate), string(h.Status)); err != nil {
			return fmt.Errorf("inserting plan history: %w", err)
		}
	}

	for i, m := range u.MessagesFromAdmin {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO admin_messages (id, user_id, seq, text, created_at, read)
			 VALUES (?,?,?,?,?,?)
			 ON CONFLICT (id) DO UPDATE SET read = excluded.read, seq = excluded.seq`,
			m.ID, u.ID, i, m.Text, fmtTime(m.Timestamp), m.Read); err != nil {
			return fmt.Errorf("upserting admin message: %w", err)
		}
	}
	return nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
