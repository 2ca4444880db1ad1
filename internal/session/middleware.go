package session

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName = "session_id"
	LocalsKey  = "session_id"
	cookieTTL  = 365 * 24 * time.Hour
)

// cookieStore adapts a request's cookie jar to the Store contract.
type cookieStore struct {
	c *fiber.Ctx
}

func (s cookieStore) Load(_ context.Context) (string, error) {
	if id := s.c.Cookies(CookieName); id != "" {
		return id, nil
	}
	return "", ErrNoSession
}

func (s cookieStore) Save(_ context.Context, id string) error {
	s.c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HTTPOnly: false,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return nil
}

// Middleware issues a session cookie to clients that carry none and exposes
// the id through c.Locals(LocalsKey).
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := NewProvider(cookieStore{c: c}).GetOrCreate(c.UserContext())
		if err != nil {
			return err
		}
		c.Locals(LocalsKey, id)
		return c.Next()
	}
}

// FromCtx returns the session id set by Middleware.
func FromCtx(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsKey).(string)
	return id
}

// RegisterPublicRoutes exposes the caller's session id so browser clients can
// address the cart endpoints.
func RegisterPublicRoutes(app fiber.Router) {
	app.Get("/session", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"session_id": FromCtx(c)})
	})
}
