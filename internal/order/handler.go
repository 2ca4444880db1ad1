package order

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/cart"
)

// Handler exposes order creation and lookup.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterPublicRoutes must run after any static /orders/<name> routes so
// they are not captured by the order number parameter.
func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/orders", h.createOrder)
	app.Get("/orders/:order_number", h.getOrder)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/orders/email/:email", h.getOrdersByEmail)
}

// createOrderRequest accepts billing either nested or as flat customer_*
// fields.
type createOrderRequest struct {
	SessionID      string   `json:"session_id"`
	Billing        *Billing `json:"billing,omitempty"`
	CustomerName   string   `json:"customer_name,omitempty"`
	CustomerEmail  string   `json:"customer_email,omitempty"`
	CustomerPhone  string   `json:"customer_phone,omitempty"`
	BillingAddress string   `json:"billing_address,omitempty"`
	City           string   `json:"city,omitempty"`
	State          string   `json:"state,omitempty"`
	Pincode        string   `json:"pincode,omitempty"`
}

func (r createOrderRequest) billing() Billing {
	if r.Billing != nil {
		return *r.Billing
	}
	return Billing{
		Name:    r.CustomerName,
		Email:   r.CustomerEmail,
		Phone:   r.CustomerPhone,
		Address: r.BillingAddress,
		City:    r.City,
		State:   r.State,
		Pincode: r.Pincode,
	}
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	payload := new(createOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}

	o, err := h.service.CreateOrder(c.UserContext(), payload.SessionID, payload.billing())
	if err != nil {
		var ve *ValidationError
		switch {
		case errors.As(err, &ve):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ve.Fields})
		case errors.Is(err, ErrEmptyCart):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Cart is empty"})
		case errors.Is(err, cart.ErrInvalidSession):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "session_id is required"})
		case errors.Is(err, ErrProductNotFound):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "a product in the cart is no longer available"})
		default:
			log.Errorw("create order failed", "session_id", payload.SessionID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error creating order"})
		}
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	o, err := h.service.Get(c.UserContext(), c.Params("order_number"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Order not found"})
		}
		log.Errorw("get order failed", "order_number", c.Params("order_number"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching order"})
	}
	return c.JSON(o)
}

func (h *Handler) getOrdersByEmail(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid email"})
	}
	orders, err := h.service.ListByEmail(c.UserContext(), email)
	if err != nil {
		if errors.Is(err, ErrInvalidEmail) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		log.Errorw("list orders by email failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching orders"})
	}
	return c.JSON(orders)
}
