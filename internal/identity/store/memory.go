// Package store holds the user account backends: in-memory, Postgres and gorm
// (SQLite / MySQL).
package store

import (
	"context"
	"fmt"
	"sync"

	"compliancehub/internal/identity/models"
	id "compliancehub/pkg/domain"
	"compliancehub/pkg/platform/sentinel"
)

// Memory keeps users in process, indexed by ID and lower-cased email.
type Memory struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *Memory) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.NormalizeEmail(u.Email)
	if _, ok := s.byEmail[key]; ok {
		return fmt.Errorf("user %s: %w", key, sentinel.ErrConflict)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %s: %w", u.ID, sentinel.ErrConflict)
	}
	stored := *u
	stored.Email = key
	s.users[u.ID] = &stored
	s.byEmail[key] = u.ID
	return nil
}

func (s *Memory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	out := *u
	return &out, nil
}

func (s *Memory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[models.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, sentinel.ErrNotFound)
	}
	out := *s.users[userID]
	return &out, nil
}
