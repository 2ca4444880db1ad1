package cart

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/cartsync"
	"github.com/wichananm65/ebook-storefront/internal/product"
)

// Handler exposes the session-scoped cart over HTTP.
type Handler struct {
	service *Service
	bus     *cartsync.Bus
}

// NewHandler wires the cart routes. bus may be nil, which disables the
// event stream route.
func NewHandler(s *Service, bus *cartsync.Bus) *Handler {
	return &Handler{service: s, bus: bus}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/cart/:session_id", h.getCart)
	app.Get("/cart/:session_id/count", h.getCount)
	if h.bus != nil {
		app.Get("/cart/:session_id/events", cartsync.StreamHandler(h.bus, func(ctx context.Context, sessionID string) (int, error) {
			return h.service.Count(ctx, sessionID)
		}))
	}
	app.Post("/cart/:session_id/items", h.addItem)
	app.Put("/cart/:session_id/items/:product_id", h.updateItem)
	app.Delete("/cart/:session_id/items/:product_id", h.removeItem)
	app.Delete("/cart/:session_id", h.clearCart)
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	cart, err := h.service.GetCart(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

// getCount is a read path for badges: failures answer zero and are only logged.
func (h *Handler) getCount(c *fiber.Ctx) error {
	n, err := h.service.Count(c.UserContext(), c.Params("session_id"))
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		log.Warnw("cart count failed", "session_id", c.Params("session_id"), "error", err)
		return c.JSON(fiber.Map{"count": 0})
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.ProductID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "product_id is required"})
	}
	qty := 1
	if payload.Quantity != nil {
		qty = *payload.Quantity
	}

	cart, err := h.service.AddItem(c.UserContext(), c.Params("session_id"), payload.ProductID, qty)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	payload := new(updateItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Quantity == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "quantity is required"})
	}

	cart, err := h.service.UpdateItem(c.UserContext(), c.Params("session_id"), c.Params("product_id"), *payload.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	cart, err := h.service.RemoveItem(c.UserContext(), c.Params("session_id"), c.Params("product_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	cart, err := h.service.ClearCart(c.UserContext(), c.Params("session_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, product.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Product not found"})
	case errors.Is(err, ErrItemNotInCart):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Item not found in cart"})
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidSession):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "cart is busy, please retry"})
	default:
		log.Errorw("cart operation failed", "session_id", c.Params("session_id"), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "cart operation failed"})
	}
}
