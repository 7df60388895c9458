package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/storage"
	"github.com/google/uuid"
)

// CreateUser registers a new account with default profile values.
func (s *Service) CreateUser(ctx context.Context, name, email string) (*models.UserRecord, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if err := checkIdentity(name, email); err != nil {
		return nil, err
	}
	u := models.NewUserRecord(uuid.NewString(), name, email)
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user created", "user_id", u.ID)
	return &u, nil
}

// EnsureGuest creates the guest account if it does not exist yet.
func (s *Service) EnsureGuest(ctx context.Context) (*models.UserRecord, error) {
	u, err := s.store.GetUser(ctx, GuestID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	guest := models.NewUserRecord(GuestID, GuestName, GuestEmail)
	err = s.store.CreateUser(ctx, guest)
	if errors.Is(err, storage.ErrUserExists) {
		return s.store.GetUser(ctx, GuestID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating guest user: %w", err)
	}
	s.log.Info("guest user created")
	return &guest, nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]models.UserRecord, error) {
	return s.store.ListUsers(ctx)
}

// Profile holds the editable account fields. Nil fields are left as they are.
type Profile struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Age    *string `json:"age"`
	Weight *string `json:"weight"`
	Height *string `json:"height"`
}

// UpdateProfile applies the set fields of p.
func (s *Service) UpdateProfile(ctx context.Context, id string, p Profile) (*models.UserRecord, error) {
	return s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		if p.Name != nil {
			u.Name = strings.TrimSpace(*p.Name)
		}
		if p.Email != nil {
			u.Email = strings.TrimSpace(*p.Email)
		}
		if err := checkIdentity(u.Name, u.Email); err != nil {
			return err
		}
		if p.Age != nil {
			u.Age = strings.TrimSpace(*p.Age)
		}
		if p.Weight != nil {
			u.Weight = strings.TrimSpace(*p.Weight)
		}
		if p.Height != nil {
			u.Height = strings.TrimSpace(*p.Height)
		}
		return nil
	})
}

// SetPremium toggles premium membership.
func (s *Service) SetPremium(ctx context.Context, id string, premium bool) (*models.UserRecord, error) {
	u, err := s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		u.IsPremium = premium
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("premium updated", "user_id", id, "premium", premium)
	return u, nil
}

// SendMessage appends an unread admin message to the user's inbox.
func (s *Service) SendMessage(ctx context.Context, id, text string) (*models.AdminMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is empty", ErrInvalidProfile)
	}
	msg := models.AdminMessage{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: s.now().UTC(),
	}
	_, err := s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		u.MessagesFromAdmin = append(u.MessagesFromAdmin, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("admin message sent", "user_id", id, "message_id", msg.ID)
	return &msg, nil
}

// MarkMessageRead flags one inbox message as read.
func (s *Service) MarkMessageRead(ctx context.Context, id, messageID string) (*models.UserRecord, error) {
	return s.store.UpdateUser(ctx, id, func(u *models.UserRecord) error {
		for i := range u.MessagesFromAdmin {
			if u.MessagesFromAdmin[i].ID == messageID {
				u.MessagesFromAdmin[i].Read = true
				return nil
			}
		}
		return fmt.Errorf("message %s: %w", messageID, storage.ErrNotFound)
	})
}

// Messages returns the user's inbox, oldest first.
func (s *Service) Messages(ctx context.Context, id string) ([]models.AdminMessage, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.MessagesFromAdmin, nil
}

// UnreadMessages returns the messages not yet marked read.
func UnreadMessages(u models.UserRecord) []models.AdminMessage {
	out := []models.AdminMessage{}
	for _, m := range u.MessagesFromAdmin {
		if !m.Read {
			out = append(out, m)
		}
	}
	return out
}

func checkIdentity(name, email string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email %q", ErrInvalidProfile, email)
	}
	return nil
}
