package dto

import (
	"time"

	"github.com/spec-kit/contact-service/internal/domain"
)

// RegisterRequest payload for new users.
type RegisterRequest struct {
	FirstName       string `json:"firstName" validate:"required,max=50"`
	LastName        string `json:"lastName" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Username        string `json:"username" validate:"required,min=4,max=15"`
	Password        string `json:"password" validate:"required,min=6,max=50,maxbytes=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest payload for login. Lengths are not checked so every failure looks the same.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest carries the pair being rotated. Empty fields fall back to cookies.
type RefreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest names the refresh token to revoke. Empty falls back to the cookie.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UpdatePasswordRequest payload for PUT /Users.
type UpdatePasswordRequest struct {
	OldPassword     string `json:"oldPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,max=50,maxbytes=72,nefield=OldPassword"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// UpdateDetailsRequest payload for PUT /Users/Details. Omitted fields are kept.
type UpdateDetailsRequest struct {
	FirstName *string `json:"firstName" validate:"omitnil,required,max=50"`
	LastName  *string `json:"lastName" validate:"omitnil,required,max=50"`
}

func (r *RegisterRequest) normalize() {
	trim(&r.FirstName, &r.LastName, &r.Email, &r.Username)
}

func (r *LoginRequest) normalize() {
	trim(&r.Username)
}

func (r *UpdateDetailsRequest) normalize() {
	trimOptional(r.FirstName, r.LastName)
}

// AuthResponse is returned by register, login and refresh.
type AuthResponse struct {
	Result       bool   `json:"result"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// LogoutResponse reports whether a token was revoked.
type LogoutResponse struct {
	Result bool `json:"result"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserResponse maps a domain user, dropping the password hash.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		CreatedAt: u.CreatedAt,
	}
}
