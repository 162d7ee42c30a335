package domain

import (
	"strings"
	"time"
)

// ProductStatusActive is the only status visible to search.
const ProductStatusActive = "active"

// CategoryDepth is the fixed depth of the category hierarchy.
const CategoryDepth = 5

// CategoryLevel is one entry of Category.AllLevels.
type CategoryLevel struct {
	Level int    `json:"level"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
}

// Category is the five-level hierarchy flattened onto a product. Absent
// levels are empty strings.
type Category struct {
	Main      string          `json:"main"`
	Sub       string          `json:"sub,omitempty"`
	Type      string          `json:"type,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	Style     string          `json:"style,omitempty"`
	AllLevels []CategoryLevel `json:"allLevels,omitempty"`
	FullPath  string          `json:"fullPath,omitempty"`
}

// Levels returns the five named levels in order, main first.
func (c Category) Levels() [CategoryDepth]string {
	return [CategoryDepth]string{c.Main, c.Sub, c.Type, c.Variant, c.Style}
}

// Names returns every non-empty category name on the product: the five
// levels followed by any AllLevels names not already listed.
func (c Category) Names() []string {
	seen := make(map[string]struct{}, CategoryDepth)
	var out []string
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" {
			return
		}
		k := strings.ToLower(n)
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	for _, n := range c.Levels() {
		add(n)
	}
	for _, l := range c.AllLevels {
		add(l.Name)
	}
	return out
}

// SizeVariant is stock for one size of a colour.
type SizeVariant struct {
	Size       string `json:"size,omitempty"`
	CustomSize string `json:"customSize,omitempty"`
	Stock      int    `json:"stock"`
}

// ColorVariant groups the sizes available in one colour.
type ColorVariant struct {
	ColorName    string        `json:"colorName"`
	ColorCode    string        `json:"colorCode,omitempty"`
	SizeVariants []SizeVariant `json:"sizeVariants"`
}

// Rating is the aggregate review score.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// SearchableProduct is the read-only projection of a catalog product that
// search operates on.
type SearchableProduct struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Brand         string         `json:"brand"`
	Tags          []string       `json:"tags"`
	Category      Category       `json:"category"`
	ColorVariants []ColorVariant `json:"colorVariants"`
	Price         float64        `json:"price"`
	Stock         int            `json:"stock"`
	Rating        Rating         `json:"rating"`
	ViewCount     int            `json:"viewCount"`
	SalesCount    int            `json:"salesCount"`
	Status        string         `json:"status"`
	ImageURL      string         `json:"imageUrl,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// IsActive reports whether the product is visible to search.
func (p *SearchableProduct) IsActive() bool {
	return p.Status == ProductStatusActive
}

// VariantStock sums stock over every size variant.
func (p *SearchableProduct) VariantStock() int {
	total := 0
	for _, cv := range p.ColorVariants {
		for _, sv := range cv.SizeVariants {
			total += sv.Stock
		}
	}
	return total
}
