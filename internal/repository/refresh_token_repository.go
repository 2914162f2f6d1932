package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/contact-service/internal/domain"
)

const (
	// DefaultRefreshTokenTTL is roughly two months.
	DefaultRefreshTokenTTL = 60 * 24 * time.Hour

	maxCreateAttempts = 3
)

// SecretGenerator produces a new random refresh token string.
type SecretGenerator func() (string, error)

// RefreshTokenRepository persists refresh tokens and enforces their liveness gate.
//
// Lookup and Consume only ever return live tokens; any other state is ErrNotFound so
// callers cannot tell a missing token from a used, revoked or expired one.
type RefreshTokenRepository interface {
	// Create mints and stores a new live token for userID. ErrUnknownUser if the user is gone.
	Create(ctx context.Context, userID string) (*domain.RefreshToken, error)
	// Lookup returns the token only if it is live.
	Lookup(ctx context.Context, token string) (*domain.RefreshToken, error)
	// Consume atomically checks liveness and sets the used flag. Of several
	// concurrent calls for the same token at most one succeeds.
	Consume(ctx context.Context, token string) (*domain.RefreshToken, error)
	// MarkUsed sets the used flag. It reports whether a record matched.
	MarkUsed(ctx context.Context, token string) (bool, error)
	// MarkRevoked sets the revoked flag. It reports whether a record matched.
	MarkRevoked(ctx context.Context, token string) (bool, error)
}

// RefreshTokenOptions configures every RefreshTokenRepository implementation.
type RefreshTokenOptions struct {
	TTL      time.Duration
	Generate SecretGenerator
	Now      func() time.Time
}

// WithDefaults fills unset options.
func (o RefreshTokenOptions) WithDefaults() RefreshTokenOptions {
	if o.TTL <= 0 {
		o.TTL = DefaultRefreshTokenTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Generate == nil {
		o.Generate = func() (string, error) { return "", errors.New("refresh token generator not configured") }
	}
	return o
}

// CreateWithRetry runs insert with fresh secrets until it stops reporting ErrDuplicate.
func CreateWithRetry(opts RefreshTokenOptions, insert func(token string) error) error {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		token, err := opts.Generate()
		if err != nil {
			return fmt.Errorf("generate refresh token: %w", err)
		}
		err = insert(token)
		if errors.Is(err, ErrDuplicate) {
			continue
		}
		return err
	}
	return fmt.Errorf("refresh token collided %d times: %w", maxCreateAttempts, ErrDuplicate)
}

type refreshTokenRepository struct {
	db   DBTX
	opts RefreshTokenOptions
}

// NewRefreshTokenRepository returns a Postgres-backed implementation.
func NewRefreshTokenRepository(db DBTX, opts RefreshTokenOptions) RefreshTokenRepository {
	return &refreshTokenRepository{db: db, opts: opts.WithDefaults()}
}

const refreshTokenColumns = `id, user_id, token, created_at, expires_at, used, revoked`

func (r *refreshTokenRepository) Create(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	const query = `
        INSERT INTO refresh_tokens (user_id, token, expires_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	rt := &domain.RefreshToken{UserID: userID}
	err := CreateWithRetry(r.opts, func(token string) error {
		rt.Token = token
		rt.ExpiresAt = r.opts.Now().Add(r.opts.TTL).UTC()
		err := r.db.QueryRow(ctx, query, userID, rt.Token, rt.ExpiresAt).Scan(&rt.ID, &rt.CreatedAt)
		return translate(err)
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (r *refreshTokenRepository) Lookup(ctx context.Context, token string) (*domain.RefreshToken, error) {
	const query = `
        SELECT ` + refreshTokenColumns + `
        FROM refresh_tokens
        WHERE token=$1 AND NOT used AND NOT revoked AND expires_at > $2`
	return r.fetchSingle(ctx, query, token)
}

func (r *refreshTokenRepository) Consume(ctx context.Context, token string) (*domain.RefreshToken, error) {
	const query = `
        UPDATE refresh_tokens SET used=TRUE
        WHERE token=$1 AND NOT used AND NOT revoked AND expires_at > $2
        RETURNING ` + refreshTokenColumns
	return r.fetchSingle(ctx, query, token)
}

func (r *refreshTokenRepository) MarkUsed(ctx context.Context, token string) (bool, error) {
	const query = `UPDATE refresh_tokens SET used=TRUE WHERE token=$1`
	return r.flag(ctx, query, token)
}

func (r *refreshTokenRepository) MarkRevoked(ctx context.Context, token string) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked=TRUE WHERE token=$1`
	return r.flag(ctx, query, token)
}

func (r *refreshTokenRepository) flag(ctx context.Context, query, token string) (bool, error) {
	cmd, err := r.db.Exec(ctx, query, token)
	if err != nil {
		return false, translate(err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *refreshTokenRepository) fetchSingle(ctx context.Context, query, token string) (*domain.RefreshToken, error) {
	var rt domain.RefreshToken
	if err := r.db.QueryRow(ctx, query, token, r.opts.Now()).Scan(
		&rt.ID,
		&rt.UserID,
		&rt.Token,
		&rt.CreatedAt,
		&rt.ExpiresAt,
		&rt.Used,
		&rt.Revoked,
	); err != nil {
		return nil, translate(err)
	}
	return &rt, nil
}
