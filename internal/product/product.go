package product

import (
	"regexp"
	"time"
)

// Product is a catalog entry. Prices are whole currency units.
type Product struct {
	ID              string    `json:"id" yaml:"id"`
	Slug            string    `json:"slug" yaml:"slug"`
	Title           string    `json:"title" yaml:"title"`
	Image           string    `json:"image" yaml:"image"`
	OriginalPrice   int64     `json:"original_price" yaml:"original_price"`
	CurrentPrice    int64     `json:"current_price" yaml:"current_price"`
	Description     string    `json:"description" yaml:"description"`
	LongDescription string    `json:"long_description" yaml:"long_description"`
	Features        []string  `json:"features" yaml:"features"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"-"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Validate returns every invalid field keyed by its JSON name.
func (p Product) Validate() map[string]string {
	errs := map[string]string{}
	if p.Title == "" {
		errs["title"] = "title is required"
	}
	if p.Slug == "" {
		errs["slug"] = "slug is required"
	} else if !slugPattern.MatchString(p.Slug) {
		errs["slug"] = "slug must contain only lowercase letters, digits and single dashes"
	}
	if p.OriginalPrice <= 0 {
		errs["original_price"] = "original_price must be > 0"
	}
	if p.CurrentPrice <= 0 {
		errs["current_price"] = "current_price must be > 0"
	} else if p.OriginalPrice > 0 && p.CurrentPrice > p.OriginalPrice {
		errs["current_price"] = "current_price must not exceed original_price"
	}
	return errs
}
