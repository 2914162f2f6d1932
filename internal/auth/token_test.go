package auth

import (
	"encoding/base64"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/contact-service/internal/domain"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(TokenConfig{
		Secret:    "unit-test-secret",
		Issuer:    "contact-service",
		Audience:  "contact-service-web",
		AccessTTL: time.Minute,
	})
	require.NoError(t, err)
	return tm
}

var alice = &domain.User{ID: "6f1c1d0e-1111-4c3a-9a55-000000000001", Email: "alice@x.com"}

func TestNewTokenManager_EmptySecret(t *testing.T) {
	_, err := NewTokenManager(TokenConfig{})
	require.Error(t, err)
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := newTestManager(t)

	raw, exp, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := tm.ParseToken(raw)
	require.NoError(t, err)
	require.Equal(t, alice.ID, claims.Subject)
	require.Equal(t, alice.Email, claims.Email)
	require.Equal(t, "contact-service", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"contact-service-web"}, claims.Audience)
	require.NotEmpty(t, claims.ID)
}

func TestTokenManager_TokensDifferWithinSameSecond(t *testing.T) {
	tm := newTestManager(t)
	fixed := time.Now()
	tm.now = func() time.Time { return fixed }

	a, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	b, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := newTestManager(t)
	tm.now = func() time.Time { return time.Now().Add(-time.Hour) }
	raw, _, err := tm.GenerateToken(alice)
	require.NoError(t, err)
	tm.now = time.Now

	_, err = tm.ParseToken(raw)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := tm.ParseTokenIgnoringExpiry(raw)
	require.NoError(t, err)
	require.Equal(t, alice.ID, claims.Subject)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	tm := newTestManager(t)
	other, err := NewTokenManager(TokenConfig{Secret: "other", Issuer: "contact-service", Audience: "contact-service-web"})
	require.NoError(t, err)

	raw, _, err := other.GenerateToken(alice)
	require.NoError(t, err)

	_, err = tm.ParseToken(raw)
	require.Error(t, err)
	_, err = tm.ParseTokenIgnoringExpiry(raw)
	require.Error(t, err)
}

func TestTokenManager_RejectsWrongAudienceEvenIgnoringExpiry(t *testing.T) {
	tm := newTestManager(t)
	other, err := NewTokenManager(TokenConfig{Secret: "unit-test-secret", Issuer: "contact-service", Audience: "mobile"})
	require.NoError(t, err)

	raw, _, err := other.GenerateToken(alice)
	require.NoError(t, err)

	_, err = tm.ParseToken(raw)
	require.Error(t, err)
	_, err = tm.ParseTokenIgnoringExpiry(raw)
	require.Error(t, err)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	tm := newTestManager(t)
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   alice.ID,
		Issuer:    "contact-service",
		Audience:  jwt.ClaimStrings{"contact-service-web"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)

	_, err = tm.ParseToken(raw)
	require.Error(t, err)
}

func TestGenerateRefreshSecret(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s, err := GenerateRefreshSecret()
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(s)
		require.NoError(t, err)
		require.Len(t, raw, 64)

		_, dup := seen[s]
		require.False(t, dup, "refresh secret repeated")
		seen[s] = struct{}{}
	}
}
