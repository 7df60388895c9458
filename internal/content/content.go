// Package content serves clinic announcements and the journal list through
// a read-through cache.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/claude/physcio/internal/metrics"
	"github.com/claude/physcio/internal/models"
	"github.com/claude/physcio/internal/storage"
	"github.com/coocood/freecache"
)

const (
	megabyte = 1024 * 1024

	keyAnnouncements = "announcements"
	keyJournals      = "journals"
)

// ErrInvalid is returned when required content fields are missing.
var ErrInvalid = errors.New("invalid content")

// Service wraps a ContentStore with a freecache layer. Writes go straight
// to the store and drop the cached list.
type Service struct {
	store     storage.ContentStore
	cache     *freecache.Cache
	expireSec int
	metrics   *metrics.Manager
	log       *slog.Logger

	// generations counts invalidations per key. A load that started before
	// an invalidation must not repopulate the cache.
	mu          sync.Mutex
	generations map[string]uint64
}

// New creates a content service. A non-positive expireSec disables expiry.
func New(store storage.ContentStore, expireSec int, m *metrics.Manager, log *slog.Logger) *Service {
	return &Service{
		store:       store,
		cache:       freecache.NewCache(4 * megabyte),
		expireSec:   expireSec,
		metrics:     m,
		log:         log,
		generations: make(map[string]uint64),
	}
}

// Announcements returns all announcements, newest first.
func (s *Service) Announcements(ctx context.Context) ([]models.Announcement, error) {
	return cached(s, keyAnnouncements, func() ([]models.Announcement, error) {
		return s.store.ListAnnouncements(ctx)
	})
}

// Journals returns the reference journal list.
func (s *Service) Journals(ctx context.Context) ([]models.Journal, error) {
	return cached(s, keyJournals, func() ([]models.Journal, error) {
		return s.store.ListJournals(ctx)
	})
}

// PostAnnouncement publishes a new announcement.
func (s *Service) PostAnnouncement(ctx context.Context, title, body string) (*models.Announcement, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalid)
	}
	a, err := s.store.AddAnnouncement(ctx, title, body)
	if err != nil {
		return nil, err
	}
	s.invalidate(keyAnnouncements)
	s.log.Info("announcement posted", "id", a.ID)
	return a, nil
}

// EditAnnouncement replaces an announcement's title and content.
func (s *Service) EditAnnouncement(ctx context.Context, a models.Announcement) error {
	if strings.TrimSpace(a.Title) == "" || strings.TrimSpace(a.Content) == "" {
		return fmt.Errorf("%w: title and content are required", ErrInvalid)
	}
	if err := s.store.UpdateAnnouncement(ctx, a); err != nil {
		return err
	}
	s.invalidate(keyAnnouncements)
	return nil
}

// RemoveAnnouncement deletes an announcement.
func (s *Service) RemoveAnnouncement(ctx context.Context, id string) error {
	if err := s.store.DeleteAnnouncement(ctx, id); err != nil {
		return err
	}
	s.invalidate(keyAnnouncements)
	return nil
}

// AddJournal adds a journal to the reference list.
func (s *Service) AddJournal(ctx context.Context, j models.Journal) (*models.Journal, error) {
	if err := validateJournal(j); err != nil {
		return nil, err
	}
	out, err := s.store.AddJournal(ctx, j)
	if err != nil {
		return nil, err
	}
	s.invalidate(keyJournals)
	return out, nil
}

// EditJournal replaces a journal entry.
func (s *Service) EditJournal(ctx context.Context, j models.Journal) error {
	if err := validateJournal(j); err != nil {
		return err
	}
	if err := s.store.UpdateJournal(ctx, j); err != nil {
		return err
	}
	s.invalidate(keyJournals)
	return nil
}

// RemoveJournal deletes a journal entry.
func (s *Service) RemoveJournal(ctx context.Context, id string) error {
	if err := s.store.DeleteJournal(ctx, id); err != nil {
		return err
	}
	s.invalidate(keyJournals)
	return nil
}

func validateJournal(j models.Journal) error {
	if strings.TrimSpace(j.Title) == "" || strings.TrimSpace(j.Link) == "" {
		return fmt.Errorf("%w: journal title and link are required", ErrInvalid)
	}
	if j.Year < 0 {
		return fmt.Errorf("%w: year %d", ErrInvalid, j.Year)
	}
	return nil
}

func (s *Service) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	s.cache.Del([]byte(key))
}

func (s *Service) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[key]
}

// fill caches raw under key unless key was invalidated since gen was read.
func (s *Service) fill(key string, gen uint64, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generations[key] != gen {
		return
	}
	if err := s.cache.Set([]byte(key), raw, s.expireSec); err != nil {
		s.log.Debug("content cache set failed", "key", key, "error", err)
	}
}

// cached returns the list stored under key, loading and caching it on a miss.
// A broken cache entry is logged and treated as a miss.
func cached[T any](s *Service, key string, load func() ([]T, error)) ([]T, error) {
	if raw, err := s.cache.Get([]byte(key)); err == nil {
		var out []T
		if err := json.Unmarshal(raw, &out); err == nil {
			s.metrics.CounterCacheHits.WithLabelValues("hit").Inc()
			return out, nil
		}
		s.log.Warn("dropping unreadable cache entry", "key", key)
		s.cache.Del([]byte(key))
	}
	s.metrics.CounterCacheHits.WithLabelValues("miss").Inc()

	gen := s.generation(key)
	out, err := load()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	s.fill(key, gen, raw)
	return out, nil
}
