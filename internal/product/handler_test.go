package product

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func seedProducts() []Product {
	return []Product{
		{ID: "prod-1", Slug: "software-system-design", Title: "Software System Design", OriginalPrice: 1499, CurrentPrice: 499, Features: []string{"Case studies"}},
		{ID: "prod-2", Slug: "software-architecture-patterns", Title: "Software Architecture Patterns", OriginalPrice: 1499, CurrentPrice: 499, Features: []string{}},
	}
}

func newTestApp(repo Repository) *fiber.App {
	h := NewHandler(NewService(repo))
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	h.RegisterProtectedRoutes(app)
	return app
}

func TestProductRoutes_Registered(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(nil))

	routes := map[string]bool{}
	for _, grp := range app.Stack() {
		for _, r := range grp {
			routes[r.Method+" "+r.Path] = true
		}
	}
	for _, want := range []string{"GET /products", "GET /products/:slug", "POST /products"} {
		if !routes[want] {
			t.Fatalf("expected route %q to be registered", want)
		}
	}
}

func TestGetProducts(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts()))

	res, err := app.Test(httptest.NewRequest("GET", "/products", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", res.StatusCode)
	}
	var got []Product
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "prod-1" {
		t.Fatalf("unexpected products: %+v", got)
	}
}

func TestGetProductBySlug(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(seedProducts()))

	res, _ := app.Test(httptest.NewRequest("GET", "/products/software-system-design", nil))
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", res.StatusCode)
	}
	b, _ := io.ReadAll(res.Body)
	if !strings.Contains(string(b), `"current_price":499`) {
		t.Fatalf("unexpected body: %s", b)
	}

	res2, _ := app.Test(httptest.NewRequest("GET", "/products/missing", nil))
	if res2.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown slug, got %d", res2.StatusCode)
	}
}

func TestCreateProduct_ReturnsAllValidationErrors(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(nil))

	body := `{"slug":"Bad Slug","original_price":100,"current_price":200}`
	req := httptest.NewRequest("POST", "/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", res.StatusCode)
	}
	var payload struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"title", "slug", "current_price"} {
		if _, ok := payload.Errors[field]; !ok {
			t.Fatalf("expected error for %s, got %+v", field, payload.Errors)
		}
	}
}

func TestCreateProduct_AssignsIDAndRejectsDuplicateSlug(t *testing.T) {
	app := newTestApp(NewInMemoryRepository(nil))

	body := `{"title":"New Book","slug":"new-book","original_price":999,"current_price":499}`
	req := httptest.NewRequest("POST", "/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201 got %d", res.StatusCode)
	}
	var created Product
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be set: %+v", created)
	}

	req2 := httptest.NewRequest("POST", "/products", strings.NewReader(body))
	req2.Header.Set("Content-Type", "application/json")
	res2, _ := app.Test(req2)
	if res2.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409 for duplicate slug, got %d", res2.StatusCode)
	}
}
