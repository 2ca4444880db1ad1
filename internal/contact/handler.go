package contact

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app fiber.Router) {
	app.Post("/contact", h.submit)
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/contact/messages", h.list)
}

func (h *Handler) submit(c *fiber.Ctx) error {
	payload := new(Message)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	m, err := h.service.Submit(c.UserContext(), *payload)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": ve.Fields})
		}
		log.Errorw("submit contact message failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error submitting message"})
	}
	return c.JSON(fiber.Map{"message": "Contact message received successfully", "id": m.ID})
}

func (h *Handler) list(c *fiber.Ctx) error {
	messages, err := h.service.List(c.UserContext())
	if err != nil {
		log.Errorw("list contact messages failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Error fetching messages"})
	}
	return c.JSON(messages)
}
