package auth

import (
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
)

const contextKey = "admin"

// Middleware rejects requests without a valid admin token. Mount it after
// the public routes so only routes registered later are guarded.
func Middleware(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		ContextKey: contextKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
		},
		SuccessHandler: func(c *fiber.Ctx) error {
			if !IsAdmin(c) {
				return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "forbidden"})
			}
			return c.Next()
		},
	})
}

// IsAdmin reports whether the verified token in the context carries the
// admin role.
func IsAdmin(c *fiber.Ctx) bool {
	tok, ok := c.Locals(contextKey).(*jwt.Token)
	if !ok {
		return false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	role, _ := claims["role"].(string)
	return role == RoleAdmin
}
