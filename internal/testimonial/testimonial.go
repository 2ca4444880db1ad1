package testimonial

import "time"

// Testimonial is a customer quote shown on the storefront.
type Testimonial struct {
	ID        int       `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Position  string    `json:"position" yaml:"position"`
	Image     string    `json:"image" yaml:"image"`
	Text      string    `json:"text" yaml:"text"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}
