package contact

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const notifyTimeout = 30 * time.Second

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "invalid contact message" }

// Notifier forwards new messages to the shop owner.
type Notifier interface {
	SendContactNotification(ctx context.Context, m Message) error
}

type Service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
	spawn    func(func())
}

func NewService(r Repository, n Notifier) *Service {
	return &Service{
		repo:     r,
		notifier: n,
		now:      time.Now,
		spawn:    func(fn func()) { go fn() },
	}
}

// Submit stores the message as new and notifies the owner in the
// background. Notification failures are only logged.
func (s *Service) Submit(ctx context.Context, m Message) (Message, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = strings.TrimSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)
	if errs := m.Validate(); len(errs) > 0 {
		return Message{}, &ValidationError{Fields: errs}
	}
	m.ID = uuid.NewString()
	m.Status = StatusNew
	m.CreatedAt = s.now().UTC()

	saved, err := s.repo.Create(ctx, m)
	if err != nil {
		return Message{}, err
	}
	log.Infow("contact message received", "id", saved.ID)

	if s.notifier != nil {
		s.spawn(func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := s.notifier.SendContactNotification(notifyCtx, saved); err != nil {
				log.Warnw("contact notification failed", "id", saved.ID, "error", err)
			}
		})
	}
	return saved, nil
}

func (s *Service) List(ctx context.Context) ([]Message, error) {
	return s.repo.List(ctx)
}
