package payment

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/wichananm65/ebook-storefront/internal/order"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/payment/config", h.config)
	app.Post("/payment/create-order", h.createOrder)
	app.Post("/payment/verify-payment", h.verifyPayment)
	app.Post("/payment/cancel", h.cancel)

	// Older storefront builds call the gateway-named paths.
	app.Post("/razorpay/create-order", h.createOrder)
	app.Post("/razorpay/verify-payment", h.verifyPayment)
}

// createOrderRequest also accepts the legacy {amount, currency, receipt,
// notes} body. The receipt names the order and the amount is ignored.
type createOrderRequest struct {
	OrderNumber string            `json:"order_number"`
	Receipt     string            `json:"receipt"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Notes       map[string]string `json:"notes"`
}

type verifyRequest struct {
	Verification
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (r verifyRequest) normalize() Verification {
	v := r.Verification
	if v.GatewayOrderID == "" {
		v.GatewayOrderID = r.RazorpayOrderID
	}
	if v.GatewayPaymentID == "" {
		v.GatewayPaymentID = r.RazorpayPaymentID
	}
	if v.Signature == "" {
		v.Signature = r.RazorpaySignature
	}
	return v
}

type cancelRequest struct {
	OrderNumber string `json:"order_number"`
}

func (h *Handler) config(c *fiber.Ctx) error {
	return c.JSON(h.service.Config())
}

func (h *Handler) createOrder(c *fiber.Ctx) error {
	payload := new(createOrderRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	number := payload.OrderNumber
	if number == "" {
		number = payload.Receipt
	}

	intent, err := h.service.CreateGatewayOrder(c.UserContext(), number)
	if err != nil {
		return h.fail(c, "create gateway order", number, err)
	}
	return c.JSON(fiber.Map{
		"gateway_order_id": intent.GatewayOrderID,
		"id":               intent.GatewayOrderID,
		"order_number":     intent.OrderNumber,
		"receipt":          intent.OrderNumber,
		"amount":           intent.Amount,
		"currency":         intent.Currency,
		"key_id":           intent.KeyID,
	})
}

func (h *Handler) verifyPayment(c *fiber.Ctx) error {
	payload := new(verifyRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	v := payload.normalize()

	o, err := h.service.VerifyPayment(c.UserContext(), v)
	if err != nil {
		if errors.Is(err, ErrVerificationFailed) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"verified": false, "message": "Invalid payment signature"})
		}
		return h.fail(c, "verify payment", v.OrderNumber, err)
	}
	return c.JSON(fiber.Map{"verified": true, "order": o})
}

func (h *Handler) cancel(c *fiber.Ctx) error {
	payload := new(cancelRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	o, err := h.service.Cancel(c.UserContext(), payload.OrderNumber)
	if err != nil {
		return h.fail(c, "cancel order", payload.OrderNumber, err)
	}
	return c.JSON(o)
}

func (h *Handler) fail(c *fiber.Ctx, op, number string, err error) error {
	var ge *GatewayError
	switch {
	case errors.Is(err, ErrMissingOrderNumber):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, order.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Order not found"})
	case errors.Is(err, ErrAlreadyPaid), errors.Is(err, order.ErrInvalidTransition), errors.Is(err, ErrGatewayDisabled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, ErrGatewayUnavailable):
		log.Errorw(op+" failed", "order_number", number, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"message": "Payment gateway is unavailable, please retry"})
	case errors.As(err, &ge):
		log.Errorw(op+" rejected by gateway", "order_number", number, "status", ge.Status, "code", ge.Code)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": ge.Description})
	default:
		log.Errorw(op+" failed", "order_number", number, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error processing payment"})
	}
}
