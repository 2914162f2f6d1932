package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contact-service/internal/api/dto"
	"github.com/spec-kit/contact-service/internal/auth"
	"github.com/spec-kit/contact-service/internal/domain"
	"github.com/spec-kit/contact-service/internal/service"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

// CookieOptions control the auth cookies set on successful authentication.
type CookieOptions struct {
	Secure bool
}

// UsersHandler exposes account and session endpoints.
type UsersHandler struct {
	auth    *service.AuthService
	cookies CookieOptions
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookies CookieOptions) *UsersHandler {
	return &UsersHandler{auth: authService, cookies: cookies}
}

// Register handles POST /Users/Register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, pair, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return h.authenticated(c, pair)
}

// Login handles POST /Users/Login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	_, pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return h.authenticated(c, pair)
}

// Refresh handles POST /Users/Tokens/Refresh.
func (h *UsersHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("Invalid request.", nil)
		}
	}
	if req.Token == "" {
		req.Token = c.Cookies(auth.AccessTokenCookie)
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies(auth.RefreshTokenCookie)
	}

	_, pair, err := h.auth.Refresh(c.UserContext(), req.Token, req.RefreshToken)
	if err != nil {
		return err
	}
	return h.authenticated(c, pair)
}

// Logout handles POST /Users/Logout.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("Invalid request.", nil)
		}
	}
	if req.RefreshToken == "" {
		req.RefreshToken = c.Cookies(auth.RefreshTokenCookie)
	}

	matched, err := h.auth.Logout(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	h.clearCookies(c)
	return c.JSON(dto.LogoutResponse{Result: matched})
}

// Me handles GET /Users.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	user, err := h.auth.GetUser(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// UpdatePassword handles PUT /Users.
func (h *UsersHandler) UpdatePassword(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.UpdateUserPassword(c.UserContext(), principal.User.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": true})
}

// UpdateDetails handles PUT /Users/Details.
func (h *UsersHandler) UpdateDetails(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateDetailsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.auth.UpdateUserDetails(c.UserContext(), principal.User.ID, service.UpdateDetailsInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

func (h *UsersHandler) authenticated(c *fiber.Ctx, pair *domain.TokenPair) error {
	h.setCookie(c, auth.AccessTokenCookie, pair.AccessToken, pair.AccessExpiresAt)
	h.setCookie(c, auth.RefreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt)
	return c.JSON(dto.AuthResponse{
		Result:       true,
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *UsersHandler) setCookie(c *fiber.Ctx, name, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteNoneMode,
	})
}

func (h *UsersHandler) clearCookies(c *fiber.Ctx) {
	for _, name := range []string{auth.AccessTokenCookie, auth.RefreshTokenCookie} {
		h.setCookie(c, name, "", time.Unix(0, 0))
	}
}
