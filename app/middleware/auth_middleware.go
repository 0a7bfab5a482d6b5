// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"strings"

	"github.com/amirphl/segment-backoffice/app/dto"
	"github.com/amirphl/segment-backoffice/app/services"
	"github.com/amirphl/segment-backoffice/utils"
	"github.com/gofiber/fiber/v3"
)

// AuthMiddleware requires an operator bearer token on protected endpoints.
// The token itself is forwarded upstream; it is only inspected here.
type AuthMiddleware struct {
	tokenService services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
	}
}

// Authenticate rejects requests without a usable bearer token
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		claims, err := m.tokenService.Inspect(token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			default:
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}

		c.Locals(utils.LocalAccessToken, token)
		c.Locals(utils.LocalOperator, claims)

		// Store RequestID for audit logging
		if requestID := c.Get(fiber.HeaderXRequestID); requestID != "" {
			c.Locals(utils.LocalRequestID, requestID)
		} else if requestID := c.GetRespHeader(fiber.HeaderXRequestID); requestID != "" {
			c.Locals(utils.LocalRequestID, requestID)
		}

		return c.Next()
	}
}

// GetOperatorFromContext extracts the operator claims stored by Authenticate
func GetOperatorFromContext(c fiber.Ctx) (*services.OperatorClaims, bool) {
	claims, ok := c.Locals(utils.LocalOperator).(*services.OperatorClaims)
	return claims, ok
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}
