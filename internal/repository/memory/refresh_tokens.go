package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/repository"
)

// RefreshTokens keeps refresh tokens in a map keyed by token string.
// Consume holds the write lock across check and set.
type RefreshTokens struct {
	mu      sync.Mutex
	byToken map[string]domain.RefreshToken
	users   repository.UserRepository
	opts    repository.RefreshTokenOptions
}

// NewRefreshTokens returns an empty store that checks owners against users.
func NewRefreshTokens(users repository.UserRepository, opts repository.RefreshTokenOptions) *RefreshTokens {
	return &RefreshTokens{
		byToken: make(map[string]domain.RefreshToken),
		users:   users,
		opts:    opts.WithDefaults(),
	}
}

var _ repository.RefreshTokenRepository = (*RefreshTokens)(nil)

func (s *RefreshTokens) Create(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrUnknownUser
		}
		return nil, err
	}

	var rt domain.RefreshToken
	err := repository.CreateWithRetry(s.opts, func(token string) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, taken := s.byToken[token]; taken {
			return repository.ErrDuplicate
		}
		now := s.opts.Now().UTC()
		rt = domain.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    userID,
			Token:     token,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.TTL),
		}
		s.byToken[token] = rt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (s *RefreshTokens) Lookup(_ context.Context, token string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byToken[token]
	if !ok || !rt.Live(s.opts.Now()) {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

func (s *RefreshTokens) Consume(_ context.Context, token string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byToken[token]
	if !ok || !rt.Live(s.opts.Now()) {
		return nil, repository.ErrNotFound
	}
	rt.Used = true
	s.byToken[token] = rt
	return &rt, nil
}

func (s *RefreshTokens) MarkUsed(_ context.Context, token string) (bool, error) {
	return s.flag(token, func(rt *domain.RefreshToken) { rt.Used = true }), nil
}

func (s *RefreshTokens) MarkRevoked(_ context.Context, token string) (bool, error) {
	return s.flag(token, func(rt *domain.RefreshToken) { rt.Revoked = true }), nil
}

func (s *RefreshTokens) flag(token string, set func(*domain.RefreshToken)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.byToken[token]
	if !ok {
		return false
	}
	set(&rt)
	s.byToken[token] = rt
	return true
}

// Get returns the stored record regardless of liveness.
func (s *RefreshTokens) Get(token string) (domain.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.byToken[token]
	return rt, ok
}
