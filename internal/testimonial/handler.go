package testimonial

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type Handler struct {
	repo Repository
}

func NewHandler(r Repository) *Handler {
	return &Handler{repo: r}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Get("/testimonials", h.list)
}

func (h *Handler) list(c *fiber.Ctx) error {
	items, err := h.repo.ListActive(c.UserContext())
	if err != nil {
		log.Errorw("list testimonials failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching testimonials"})
	}
	return c.JSON(items)
}
