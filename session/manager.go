package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"kzz_crawler/models"
)

// Blob keys.
const (
	CookiesKey      = "cookies"
	LocalStorageKey = "localStorage"
)

// Manager decides whether a stored session can be reused. It only touches
// the store; it never drives a browser.
type Manager struct {
	store         Store
	primaryCookie string
	now           func() time.Time
}

func NewManager(store Store, primaryCookie string) *Manager {
	return &Manager{
		store:         store,
		primaryCookie: primaryCookie,
		now:           time.Now,
	}
}

// IsValid reports whether s carries an unexpired primary cookie. It is
// evaluated fresh on every call.
func (m *Manager) IsValid(s *models.Session) bool {
	c, ok := s.Cookie(m.primaryCookie)
	if !ok {
		return false
	}
	now := float64(m.now().UnixNano()) / 1e9
	return c.Expires > now
}

// Load returns nil, nil when no cookies have been saved yet.
func (m *Manager) Load(ctx context.Context) (*models.Session, error) {
	raw, err := m.store.Get(ctx, CookiesKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s := &models.Session{Storage: map[string]string{}}
	if err := json.Unmarshal(raw, &s.Cookies); err != nil {
		return nil, fmt.Errorf("decode cookies: %w", err)
	}

	raw, err = m.store.Get(ctx, LocalStorageKey)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(raw, &s.Storage); err != nil {
			log.Printf("[session] discarding unreadable localStorage snapshot: %v", err)
			s.Storage = map[string]string{}
		}
	}

	return s, nil
}

// Save overwrites both blobs, cookies first.
func (m *Manager) Save(ctx context.Context, cookies []models.Cookie, storage map[string]string) error {
	if storage == nil {
		storage = map[string]string{}
	}

	cookieData, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	storageData, err := json.Marshal(storage)
	if err != nil {
		return fmt.Errorf("encode localStorage: %w", err)
	}

	if err := m.store.Put(ctx, CookiesKey, cookieData); err != nil {
		return err
	}
	if err := m.store.Put(ctx, LocalStorageKey, storageData); err != nil {
		return err
	}

	log.Printf("[session] saved %d cookies, %d localStorage keys", len(cookies), len(storage))
	return nil
}
