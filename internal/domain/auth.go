package domain

import "time"

// RefreshToken is a persisted, opaque, long-lived credential exchanged for a new token pair.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	Revoked   bool
}

// Live reports whether the token may still be consumed: not used, not revoked, not expired.
func (t *RefreshToken) Live(now time.Time) bool {
	return !t.Used && !t.Revoked && t.ExpiresAt.After(now)
}

// TokenPair is the result of a successful register, login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
