package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/program"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, name, email, age, weight, height, is_premium, active_plan, progress`

// GetUser loads a full user record including history and inbox.
func (db *DB) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	return loadUser(ctx, db.Pool, id, false)
}

// FindUserByEmail looks a user up by email, ignoring case.
func (db *DB) FindUserByEmail(ctx context.Context, email string) (*models.UserRecord, error) {
	var id string
	err := db.Pool.QueryRow(ctx,
		`SELECT id FROM users WHERE LOWER(email) = LOWER($1)`, email).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return db.GetUser(ctx, id)
}

// ListUsers returns every user in registration order.
func (db *DB) ListUsers(ctx context.Context) ([]models.UserRecord, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning user ids: %w", err)
	}

	result := make([]models.UserRecord, 0, len(ids))
	for _, id := range ids {
		u, err := db.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, nil
}

// CreateUser inserts a new record with its history and inbox.
func (db *DB) CreateUser(ctx context.Context, u models.UserRecord) error {
	if err := program.CheckRecord(u); err != nil {
		return err
	}
	plan, progress, err := encodeProgram(u)
	if err != nil {
		return err
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		u.ID, u.Name, u.Email, u.Age, u.Weight, u.Height, u.IsPremium, plan, progress)
	switch {
	case isUniqueViolation(err, "users_email_lower_idx"):
		return ErrEmailTaken
	case isUniqueViolation(err, ""):
		return ErrUserExists
	case err != nil:
		return fmt.Errorf("inserting user: %w", err)
	}

	if err := writeDetails(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	return nil
}

// PutUser overwrites a stored record. Prefer UpdateUser for
// read-modify-write cycles.
func (db *DB) PutUser(ctx context.Context, u models.UserRecord) error {
	if err := program.CheckRecord(u); err != nil {
		return err
	}
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := writeUser(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user: %w", err)
	}
	return nil
}

// UpdateUser runs fn against the stored record while holding a row lock.
func (db *DB) UpdateUser(ctx context.Context, id string, fn UpdateFunc) (*models.UserRecord, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	u, err := loadUser(ctx, tx, id, true)
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
	if err := writeUser(ctx, tx, *u); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user %s: %w", id, err)
	}
	return u, nil
}

func loadUser(ctx context.Context, q querier, id string, forUpdate bool) (*models.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var u models.UserRecord
	var plan, progress []byte
	err := q.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.Weight, &u.Height,
		&u.IsPremium, &plan, &progress)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %s: %w", id, err)
	}
	if err := decodeProgram(&u, plan, progress); err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}

	histRows, err := q.Query(ctx,
		`SELECT plan_title, duration_weeks, completed_date, status
		 FROM plan_history WHERE user_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying plan history: %w", err)
	}
	defer histRows.Close()
	for histRows.Next() {
		var h models.PlanHistoryItem
		if err := histRows.Scan(&h.PlanTitle, &h.DurationWeeks, &h.CompletedDate, &h.Status); err != nil {
			return nil, fmt.Errorf("scanning plan history: %w", err)
		}
		h.CompletedDate = h.CompletedDate.UTC()
		u.PlanHistory = append(u.PlanHistory, h)
	}
	if err := histRows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := q.Query(ctx,
		`SELECT id, text, created_at, read
		 FROM admin_messages WHERE user_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying admin messages: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var m models.AdminMessage
		if err := msgRows.Scan(&m.ID, &m.Text, &m.Timestamp, &m.Read); err != nil {
			return nil, fmt.Errorf("scanning admin message: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		u.MessagesFromAdmin = append(u.MessagesFromAdmin, m)
	}
	if err := msgRows.Err(); err != nil {
		return nil, err
	}

	emptySlices(&u)
	return &u, nil
}

func writeUser(ctx context.Context, q querier, u models.UserRecord) error {
	plan, progress, err := encodeProgram(u)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, age = $4, weight = $5, height = $6,
		 is_premium = $7, active_plan = $8, progress = $9,
		 version = version + 1, updated_at = NOW()
		 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.Age, u.Weight, u.Height, u.IsPremium, plan, progress)
	if isUniqueViolation(err, "users_email_lower_idx") {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("updating user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return writeDetails(ctx, q, u)
}

// writeDetails appends unseen history entries and upserts inbox messages.
func writeDetails(ctx context.Context, q querier, u models.UserRecord) error {
	var stored int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM plan_history WHERE user_id = $1`, u.ID).Scan(&stored); err != nil {
		return fmt.Errorf("counting plan history: %w", err)
	}
	if stored > len(u.PlanHistory) {
		return fmt.Errorf("%w: %d stored entries, %d given", ErrHistoryRewrite, stored, len(u.PlanHistory))
	}
	for i := stored; i < len(u.PlanHistory); i++ {
		h := u.PlanHistory[i]
		if _, err := q.Exec(ctx,
			`INSERT INTO plan_history (user_id, seq, plan_title, duration_weeks, completed_date, status)
			 VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, i, h.PlanTitle, h.DurationWeeks, h.CompletedDate, string(h.Status)); err != nil {
			return fmt.Errorf("inserting plan history: %w", err)
		}
	}

	for i, m := range u.MessagesFromAdmin {
		if _, err := q.Exec(ctx,
			`INSERT INTO admin_messages (id, user_id, seq, text, created_at, read)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (id) DO UPDATE SET read = EXCLUDED.read, seq = EXCLUDED.seq`,
			m.ID, u.ID, i, m.Text, m.Timestamp, m.Read); err != nil {
			return fmt.Errorf("upserting admin message: %w", err)
		}
	}
	return nil
}
