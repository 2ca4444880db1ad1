package auth

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

func newAdminApp(t *testing.T) *fiber.App {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	app := fiber.New()
	NewHandler(NewService("admin@example.com", string(hash), testSecret)).RegisterPublicRoutes(app)
	app.Get("/public", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Use(Middleware(testSecret))
	app.Get("/contact/messages", func(c *fiber.Ctx) error { return c.SendString("secret stuff") })
	return app
}

func login(t *testing.T, app *fiber.App, body string) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	var out struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out.Token
}

func TestLoginAndGuard(t *testing.T) {
	app := newAdminApp(t)

	if status, _ := login(t, app, `{"email":"admin@example.com","password":"wrong"}`); status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", status)
	}
	status, token := login(t, app, `{"email":"Admin@Example.com","password":"s3cret"}`)
	if status != fiber.StatusOK || token == "" {
		t.Fatalf("expected token, got %d %q", status, token)
	}

	res, err := app.Test(httptest.NewRequest("GET", "/public", nil))
	if err != nil || res.StatusCode != fiber.StatusOK {
		t.Fatalf("public route should stay open: %v %v", err, res)
	}

	res, err = app.Test(httptest.NewRequest("GET", "/contact/messages", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}

	req := httptest.NewRequest("GET", "/contact/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res, err = app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with admin token, got %d", res.StatusCode)
	}
}

func TestGuard_RejectsNonAdminToken(t *testing.T) {
	app := newAdminApp(t)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "someone", "role": "customer"})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest("GET", "/contact/messages", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin token, got %d", res.StatusCode)
	}
}

func TestAuthenticate_NotConfigured(t *testing.T) {
	if err := NewService("", "", testSecret).Authenticate("a@example.com", "x"); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
}
