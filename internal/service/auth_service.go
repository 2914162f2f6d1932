package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/contact-service/internal/auth"
	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/events"
	"github.com/spec-kit/contact-service/internal/repository"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

// Business failures of the session manager. They render as HTTP 400.
var (
	ErrConflict           = apperrors.NewDomainError(apperrors.CodeConflict, "Username or Email already exists.", http.StatusBadRequest, nil)
	ErrInvalidCredentials = apperrors.NewDomainError(apperrors.CodeInvalidCredentials, "Invalid credentials.", http.StatusBadRequest, nil)
	ErrInvalidToken       = apperrors.NewDomainError(apperrors.CodeInvalidToken, "Invalid token.", http.StatusBadRequest, nil)
	ErrInvalidOldPassword = apperrors.NewDomainError(apperrors.CodeInvalidOldPassword, "Invalid old password.", http.StatusBadRequest, nil)
	ErrUnknownIdentity    = apperrors.NewDomainError(apperrors.CodeUnknownIdentity, "Unknown user.", http.StatusBadRequest, nil)
)

const (
	minUsernameLen = 4
	maxUsernameLen = 15
)

// AuthService is the session manager: registration, login, token rotation and
// account maintenance.
type AuthService struct {
	users      repository.UserRepository
	refresh    repository.RefreshTokenRepository
	tokens     *auth.TokenManager
	hasher     auth.PasswordHasher
	dispatcher events.Dispatcher
	logger     *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	RefreshTokenRepo repository.RefreshTokenRepository
	Tokens           *auth.TokenManager
	Hasher           auth.PasswordHasher
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// RegisterInput carries a new account's profile and password.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
}

// UpdateDetailsInput holds optional profile overwrites. Nil keeps the stored value.
type UpdateDetailsInput struct {
	FirstName *string
	LastName  *string
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		refresh:    deps.RefreshTokenRepo,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("auth"),
	}
}

// Register creates an account and returns its first token pair.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, *domain.TokenPair, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateRegistration(in); err != nil {
		return nil, nil, err
	}

	taken, err := exists(func() (*domain.User, error) { return s.users.GetByUsername(ctx, in.Username) })
	if err != nil {
		return nil, nil, s.internal("register", err)
	}
	if !taken {
		taken, err = exists(func() (*domain.User, error) { return s.users.GetByEmail(ctx, in.Email) })
		if err != nil {
			return nil, nil, s.internal("register", err)
		}
	}
	if taken {
		return nil, nil, ErrConflict
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, nil, passwordTooLong("password")
		}
		return nil, nil, s.internal("register", err)
	}

	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrConflict
		}
		return nil, nil, s.internal("register", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, s.internal("register", err)
	}
	s.publish(ctx, events.NewEvent(events.EventUserRegistered, user.ID, nil))
	return user, pair, nil
}

// Login verifies credentials and issues a new pair. Earlier refresh tokens stay live.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.TokenPair, error) {
	username = strings.TrimSpace(username)

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.internal("login", err)
		}
		// same hashing cost as a real verify
		_, _ = s.hasher.Verify(s.dummy(), password)
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, "", events.LoginFailedPayload{Username: username}))
		return nil, nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, nil, s.internal("login", err)
	}
	if !ok {
		s.publish(ctx, events.NewEvent(events.EventLoginFailed, user.ID, events.LoginFailedPayload{Username: username}))
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, s.internal("login", err)
	}
	s.publish(ctx, events.NewEvent(events.EventUserLoggedIn, user.ID, nil))
	return user, pair, nil
}

// Refresh exchanges a live refresh token for a new pair and spends the old token.
// When accessToken is non-empty it must carry a valid signature for the token's owner;
// its expiry is not checked. Every rejection is ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*domain.User, *domain.TokenPair, error) {
	if refreshToken == "" {
		return nil, nil, s.rejectRefresh(ctx, "", "missing")
	}

	record, err := s.refresh.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.rejectRefresh(ctx, "", "not_live")
		}
		return nil, nil, s.internal("refresh", err)
	}

	if accessToken != "" {
		claims, err := s.tokens.ParseTokenIgnoringExpiry(accessToken)
		if err != nil || claims.Subject != record.UserID {
			return nil, nil, s.rejectRefresh(ctx, record.UserID, "access_token_mismatch")
		}
	}

	consumed, err := s.refresh.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.rejectRefresh(ctx, record.UserID, "already_consumed")
		}
		return nil, nil, s.internal("refresh", err)
	}

	user, err := s.users.GetByID(ctx, consumed.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, s.rejectRefresh(ctx, consumed.UserID, "owner_missing")
		}
		return nil, nil, s.internal("refresh", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrUnknownUser) {
			return nil, nil, s.rejectRefresh(ctx, user.ID, "owner_missing")
		}
		return nil, nil, s.internal("refresh", err)
	}
	s.publish(ctx, events.NewEvent(events.EventTokenRefreshed, user.ID, nil))
	return user, pair, nil
}

// Logout revokes the refresh token and reports whether a record matched.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) (bool, error) {
	if refreshToken == "" {
		return false, nil
	}
	matched, err := s.refresh.MarkRevoked(ctx, refreshToken)
	if err != nil {
		return false, s.internal("logout", err)
	}
	s.publish(ctx, events.NewEvent(events.EventTokenRevoked, "", events.TokenRevokedPayload{Matched: matched}))
	return matched, nil
}

// GetUser loads the account for userID.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, s.internal("get_user", err)
	}
	return user, nil
}

// UpdateUserDetails overwrites the provided name fields.
func (s *AuthService) UpdateUserDetails(ctx context.Context, userID string, in UpdateDetailsInput) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{}
	if in.FirstName != nil {
		user.FirstName = strings.TrimSpace(*in.FirstName)
		if user.FirstName == "" {
			fields["firstName"] = "is required"
		}
	}
	if in.LastName != nil {
		user.LastName = strings.TrimSpace(*in.LastName)
		if user.LastName == "" {
			fields["lastName"] = "is required"
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("Validation failed.", fields)
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownIdentity
		}
		return nil, s.internal("update_details", err)
	}
	s.publish(ctx, events.NewEvent(events.EventDetailsUpdated, user.ID, nil))
	return user, nil
}

// UpdateUserPassword replaces the password after verifying the current one.
// On ErrInvalidOldPassword the stored hash is left untouched.
func (s *AuthService) UpdateUserPassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(user.PasswordHash, oldPassword)
	if err != nil {
		return s.internal("update_password", err)
	}
	if !ok {
		return ErrInvalidOldPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return passwordTooLong("newPassword")
		}
		return s.internal("update_password", err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownIdentity
		}
		return s.internal("update_password", err)
	}
	s.publish(ctx, events.NewEvent(events.EventPasswordChanged, user.ID, nil))
	return nil
}

// issuePair signs the access token before persisting the refresh token so a signing
// failure never leaves a stored refresh token behind.
func (s *AuthService) issuePair(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	access, accessExp, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	rt, err := s.refresh.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     rt.Token,
		RefreshExpiresAt: rt.ExpiresAt,
	}, nil
}

func exists(lookup func() (*domain.User, error)) (bool, error) {
	_, err := lookup()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *AuthService) rejectRefresh(ctx context.Context, userID, reason string) error {
	s.publish(ctx, events.NewEvent(events.EventRefreshRejected, userID, events.RefreshRejectedPayload{Reason: reason}))
	return ErrInvalidToken
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			s.logger.Warn("dummy hash unavailable", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit publish failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}

func (s *AuthService) internal(operation string, err error) error {
	s.logger.Error("auth operation failed", zap.String("operation", operation), zap.Error(err))
	return apperrors.NewInternalError(err)
}

// validateRegistration re-checks the rules that depend on trimmed input.
func validateRegistration(in RegisterInput) error {
	fields := map[string]string{}
	if n := utf8.RuneCountInString(in.Username); n < minUsernameLen || n > maxUsernameLen {
		fields["username"] = "must be between 4 and 15 characters"
	}
	if in.Email == "" {
		fields["email"] = "is required"
	}
	if in.FirstName == "" {
		fields["firstName"] = "is required"
	}
	if in.LastName == "" {
		fields["lastName"] = "is required"
	}
	if in.Password != in.ConfirmPassword {
		fields["confirmPassword"] = "must match password"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("Validation failed.", fields)
	}
	return nil
}

func passwordTooLong(field string) error {
	return apperrors.NewValidationError("Validation failed.", map[string]string{
		field: "must be at most 72 bytes",
	})
}
