// Package catalog selects products for display and resolves their image keys.
package catalog

import (
	"iter"
	"strings"

	"github.com/fjod/qahwa-storefront/internal/domain"
)

// AllCategories is the label of the "everything" category chip. It is
// equivalent to an empty category.
const AllCategories = "Tout"

// Criteria narrows the catalog. Zero value matches every in-stock product.
type Criteria struct {
	Category string
	Search   string
}

func (c Criteria) categoryFilter() string {
	if c.Category == AllCategories {
		return ""
	}
	return c.Category
}

// Match reports whether p is in stock and satisfies both the category and the
// search text. Search is a case-insensitive substring of name or description.
func (c Criteria) Match(p domain.Product) bool {
	if !p.InStock {
		return false
	}

	if category := c.categoryFilter(); category != "" && p.Category != category {
		return false
	}

	search := strings.ToLower(strings.TrimSpace(c.Search))
	if search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), search) ||
		strings.Contains(strings.ToLower(p.Description), search)
}

// Select returns the matching products as a lazy sequence in source order.
// Ranging over it again starts from the beginning.
func Select(products []domain.Product, c Criteria) iter.Seq[domain.Product] {
	return func(yield func(domain.Product) bool) {
		for _, p := range products {
			if !c.Match(p) {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Filter is Select collected into a slice. It never returns nil.
func Filter(products []domain.Product, c Criteria) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for p := range Select(products, c) {
		out = append(out, p)
	}
	return out
}
