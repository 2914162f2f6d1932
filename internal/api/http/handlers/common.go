package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/contact-service/internal/api/dto"
	"github.com/spec-kit/contact-service/internal/auth"
	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

// parseBody decodes and validates a JSON request body.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("Invalid request.", nil)
	}
	return dto.Validate(req)
}

func requirePrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("Unauthorized.")
	}
	return principal, nil
}
