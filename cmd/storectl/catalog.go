package main

import (
	"fmt"
	"os"

	"github.com/wichananm65/ebook-storefront/internal/product"
	"github.com/wichananm65/ebook-storefront/internal/testimonial"
	"gopkg.in/yaml.v3"
)

// catalog is the seed file layout.
type catalog struct {
	Products     []product.Product         `yaml:"products"`
	Testimonials []testimonial.Testimonial `yaml:"testimonials"`
}

func loadCatalog(path string) (catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(c.Products) == 0 {
		return catalog{}, fmt.Errorf("catalog %s has no products", path)
	}
	for i := range c.Testimonials {
		if c.Testimonials[i].ID == 0 {
			c.Testimonials[i].ID = i + 1
		}
	}
	return c, nil
}
