package feed

import (
	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterPublicRoutes must run before the order routes so that
// "recent-purchases" is not taken for an order number.
func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/orders/recent-purchases", h.recentPurchases)
}

func (h *Handler) recentPurchases(c *fiber.Ctx) error {
	return c.JSON(h.service.ListRecentPurchases(c.UserContext(), c.QueryInt("limit", DefaultLimit)))
}
