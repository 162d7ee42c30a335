package main

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/service"
)

// seedNamespace keeps generated IDs stable across runs, so re-seeding
// overwrites instead of duplicating.
var seedNamespace = uuid.MustParse("6f1c7c1e-2d7a-4c55-9a53-4f3f0e7d9b21")

var brands = []string{
	"Arrow", "Levis", "Nike", "Adidas", "Zara", "Puma", "Samsung", "Sony",
	"Philips", "Lego", "Fossil", "Skullcandy",
}

// typeDef is a product type sold under a main category.
type typeDef struct {
	Sub      string
	Type     string
	Names    []string
	MinPrice int
	MaxPrice int
	Sized    bool
}

// mainCategory is a top-level distribution bucket.
type mainCategory struct {
	Name   string
	Weight float64 // share of generated products; weights sum to 1.0
	Types  []typeDef
}

var mainCategories = []mainCategory{
	{
		Name:   "Men",
		Weight: 0.25,
		Types: []typeDef{
			{"Shirts", "shirt", []string{"Oxford Shirt", "Linen Shirt", "Flannel Shirt"}, 20, 80, true},
			{"Jeans", "jeans", []string{"Slim Jeans", "Straight Jeans"}, 35, 120, true},
			{"Jackets", "jacket", []string{"Denim Jacket", "Bomber Jacket"}, 60, 250, true},
			{"Footwear", "shoes", []string{"Leather Shoes", "Running Shoes"}, 40, 180, true},
		},
	},
	{
		Name:   "Women",
		Weight: 0.30,
		Types: []typeDef{
			{"Dresses", "dress", []string{"Maxi Dress", "Wrap Dress", "Shirt Dress"}, 30, 200, true},
			{"Tops", "blouse", []string{"Silk Blouse", "Peasant Blouse"}, 20, 90, true},
			{"Bags", "handbag", []string{"Tote Handbag", "Crossbody Handbag"}, 45, 300, false},
			{"Footwear", "sandals", []string{"Strappy Sandals", "Platform Sandals"}, 25, 110, true},
		},
	},
	{
		Name:   "Kids",
		Weight: 0.10,
		Types: []typeDef{
			{"Clothing", "hoodie", []string{"Fleece Hoodie", "Zip Hoodie"}, 15, 50, true},
			{"Footwear", "sneakers", []string{"Light-up Sneakers", "Velcro Sneakers"}, 20, 70, true},
		},
	},
	{
		Name:   "Electronics",
		Weight: 0.20,
		Types: []typeDef{
			{"Audio", "headphones", []string{"Wireless Headphones", "Studio Headphones"}, 30, 400, false},
			{"Phones", "smartphone", []string{"5G Smartphone", "Compact Smartphone"}, 200, 1200, false},
			{"Computers", "laptop", []string{"Ultrabook Laptop", "Gaming Laptop"}, 500, 2500, false},
		},
	},
	{
		Name:   "Toys",
		Weight: 0.05,
		Types: []typeDef{
			{"Building", "lego", []string{"City Lego Set", "Technic Lego Set"}, 20, 200, false},
			{"Games", "puzzle", []string{"1000 Piece Puzzle", "3D Puzzle"}, 10, 60, false},
		},
	},
	{
		Name:   "Unisex",
		Weight: 0.10,
		Types: []typeDef{
			{"Accessories", "watch", []string{"Chronograph Watch", "Smart Watch"}, 50, 600, false},
			{"Accessories", "backpack", []string{"Travel Backpack", "Laptop Backpack"}, 30, 150, false},
		},
	},
}

var colors = []string{"Black", "White", "Navy", "Red", "Olive", "Beige", "Grey"}

var sizes = []string{"XS", "S", "M", "L", "XL"}

// generateProducts builds n products. The same seed yields the same IDs and
// attributes; only creation times move with the clock.
func generateProducts(n int, seed uint64) []service.IndexProductInput {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	now := time.Now().UTC()

	out := make([]service.IndexProductInput, 0, n)
	for i := range n {
		mc := pickMain(rng)
		t := mc.Types[rng.IntN(len(mc.Types))]
		brand := brands[rng.IntN(len(brands))]
		name := t.Names[rng.IntN(len(t.Names))]

		p := service.IndexProductInput{
			ID:          uuid.NewSHA1(seedNamespace, fmt.Appendf(nil, "product:%d", i)).String(),
			Name:        brand + " " + name,
			Description: fmt.Sprintf("%s %s by %s.", strings.ToLower(mc.Name), strings.ToLower(name), brand),
			Brand:       brand,
			Tags:        []string{strings.ToLower(mc.Name), t.Type},
			Category: domain.Category{
				Main: mc.Name,
				Sub:  t.Sub,
				Type: t.Type,
			},
			Price: float64(t.MinPrice+rng.IntN(t.MaxPrice-t.MinPrice+1)) - 0.01,
			Rating: domain.Rating{
				Average: float64(rng.IntN(41)+10) / 10,
				Count:   rng.IntN(500),
			},
			ViewCount:  rng.IntN(20000),
			SalesCount: rng.IntN(2000),
			Status:     domain.ProductStatusActive,
			ImageURL:   fmt.Sprintf("https://cdn.example.com/products/%d.jpg", i),
			CreatedAt:  now.Add(-time.Duration(rng.IntN(365*24)) * time.Hour),
		}
		if t.Sized {
			p.ColorVariants = variants(rng)
		} else {
			p.Stock = rng.IntN(50)
		}
		out = append(out, p)
	}
	return out
}

func pickMain(rng *rand.Rand) mainCategory {
	r := rng.Float64()
	for _, c := range mainCategories {
		if r < c.Weight {
			return c
		}
		r -= c.Weight
	}
	return mainCategories[len(mainCategories)-1]
}

func variants(rng *rand.Rand) []domain.ColorVariant {
	n := 1 + rng.IntN(3)
	out := make([]domain.ColorVariant, 0, n)
	for _, ci := range rng.Perm(len(colors))[:n] {
		cv := domain.ColorVariant{ColorName: colors[ci]}
		for _, s := range sizes {
			cv.SizeVariants = append(cv.SizeVariants, domain.SizeVariant{Size: s, Stock: rng.IntN(6)})
		}
		out = append(out, cv)
	}
	return out
}
