// Package memory holds in-process repository implementations used when no
// database is configured and by the service tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/repository"
)

// Users is a mutex-guarded UserRepository. Username and email are unique case-insensitively.
type Users struct {
	mu   sync.RWMutex
	byID map[string]domain.User
}

// NewUsers returns an empty store.
func NewUsers() *Users {
	return &Users{byID: make(map[string]domain.User)}
}

var _ repository.UserRepository = (*Users)(nil)

func (s *Users) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if strings.EqualFold(existing.Username, user.Username) || strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = *user
	return nil
}

func (s *Users) Update(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.FirstName = user.FirstName
	existing.LastName = user.LastName
	existing.PasswordHash = user.PasswordHash
	existing.UpdatedAt = time.Now().UTC()
	s.byID[user.ID] = existing
	user.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *Users) GetByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *Users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.find(func(u domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *Users) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.find(func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Users) find(match func(domain.User) bool) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.byID {
		if match(user) {
			u := user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}
