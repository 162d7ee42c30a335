package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/domain"
)

func product(id, name, main, sub string, mods ...func(*domain.SearchableProduct)) domain.SearchableProduct {
	p := domain.SearchableProduct{
		ID:       id,
		Name:     name,
		Category: domain.Category{Main: main, Sub: sub},
		Status:   domain.ProductStatusActive,
		Price:    50,
		Stock:    10,
		Rating:   domain.Rating{Average: 4},
	}
	for _, m := range mods {
		m(&p)
	}
	return p
}

func catalog() []domain.SearchableProduct {
	return []domain.SearchableProduct{
		product("mens-shirt", "Oxford Shirt", "Men", "Shirts"),
		product("womens-shirt", "Silk Blouse", "Women", "Shirts"),
		product("mens-jeans", "Slim Jeans", "Men", "Jeans", func(p *domain.SearchableProduct) {
			p.Brand = "Levi's"
			p.Price = 90
		}),
		product("inactive-shirt", "Linen Shirt", "Men", "Shirts", func(p *domain.SearchableProduct) {
			p.Status = "draft"
		}),
		product("red-nike", "Runner", "Unisex", "Shoes", func(p *domain.SearchableProduct) {
			p.Brand = "Nike"
			p.ColorVariants = []domain.ColorVariant{{ColorName: "Red", SizeVariants: []domain.SizeVariant{{Size: "42", Stock: 3}}}}
		}),
		product("blue-nike", "Runner", "Unisex", "Shoes", func(p *domain.SearchableProduct) {
			p.Brand = "Nike"
			p.Stock = 0
			p.Rating.Average = 2.5
			p.ColorVariants = []domain.ColorVariant{{ColorName: "Blue"}}
		}),
		product("graphic-tee", "Graphic Print", "Men", "T-Shirts", func(p *domain.SearchableProduct) {
			p.Price = 20
		}),
	}
}

func matching(t *testing.T, pred Predicate) []string {
	t.Helper()
	m, err := Compile(pred)
	require.NoError(t, err)
	var ids []string
	for _, p := range catalog() {
		if m(&p) {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func smart(query string, f domain.SearchFilters) Predicate {
	tokens := analysis.Tokenize(query)
	return Build(tokens, Detect(tokens), f)
}

func TestBuild_CategoryAndTypeExcludeOtherAudiences(t *testing.T) {
	ids := matching(t, smart("men shirt", domain.SearchFilters{}))
	assert.Equal(t, []string{"mens-shirt", "graphic-tee"}, ids)
}

func TestBuild_CategoryOnlyQuery(t *testing.T) {
	ids := matching(t, smart("mens", domain.SearchFilters{}))
	assert.Equal(t, []string{"mens-shirt", "mens-jeans", "graphic-tee"}, ids)
}

func TestBuild_TypeSynonymsMatchPluralCategories(t *testing.T) {
	ids := matching(t, smart("men tee", domain.SearchFilters{}))
	assert.Equal(t, []string{"graphic-tee"}, ids)
}

func TestBuild_OpenPredicateRequiresEveryToken(t *testing.T) {
	ids := matching(t, smart("red nike", domain.SearchFilters{}))
	assert.Equal(t, []string{"red-nike"}, ids)
}

func TestBuild_TypeWithoutCategoryIgnoresOtherTokens(t *testing.T) {
	want := []string{"mens-shirt", "womens-shirt", "graphic-tee"}
	assert.Equal(t, want, matching(t, smart("shirt", domain.SearchFilters{})))
	assert.Equal(t, want, matching(t, smart("cotton shirt", domain.SearchFilters{})))
}

func TestBuild_ExplicitFilters(t *testing.T) {
	lo, hi := 40.0, 60.0
	ids := matching(t, smart("nike", domain.SearchFilters{InStock: true}))
	assert.Equal(t, []string{"red-nike"}, ids)

	ids = matching(t, smart("men", domain.SearchFilters{MinPrice: &lo, MaxPrice: &hi}))
	assert.Equal(t, []string{"mens-shirt"}, ids)

	rating := 3.0
	ids = matching(t, smart("nike", domain.SearchFilters{MinRating: &rating, Brand: "all"}))
	assert.Equal(t, []string{"red-nike"}, ids)
}

func TestBuild_NoTokensBrowsesWithFilters(t *testing.T) {
	ids := matching(t, Build(nil, Facets{}, domain.SearchFilters{Brand: "nike"}))
	assert.Equal(t, []string{"red-nike", "blue-nike"}, ids)
}

func TestBuildLegacy_AnyToken(t *testing.T) {
	ids := matching(t, BuildLegacy(analysis.Tokenize("red nike"), domain.SearchFilters{}))
	assert.Equal(t, []string{"red-nike", "blue-nike"}, ids)
}

func TestBuildFallback_Substring(t *testing.T) {
	ids := matching(t, BuildFallback([]string{"shir"}, domain.SearchFilters{}))
	assert.Equal(t, []string{"mens-shirt", "womens-shirt", "graphic-tee"}, ids)

	ids = matching(t, BuildFallback([]string{"shir"}, domain.SearchFilters{MainCategory: "women"}))
	assert.Equal(t, []string{"womens-shirt"}, ids)
}

func TestCategorySubstring(t *testing.T) {
	ids := matching(t, CategorySubstring([]string{"jea"}))
	assert.Equal(t, []string{"mens-jeans"}, ids)
}

func TestSuggestion(t *testing.T) {
	ids := matching(t, Suggestion([]string{"nike"}, nil, FieldName, FieldBrand, FieldTags))
	assert.Equal(t, []string{"red-nike", "blue-nike"}, ids)

	tokens := analysis.Tokenize("men shirt")
	ids = matching(t, Suggestion(tokens, Detect(tokens).Category, FieldName))
	assert.Equal(t, []string{"mens-shirt"}, ids)
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{"mens-jeans"}, matching(t, Categories([]string{"jeans"})))
	assert.Equal(t, []string{"mens-shirt", "mens-jeans", "graphic-tee"}, matching(t, Categories([]string{"men"})))
}

func TestCompile_RegexpMetacharactersAreLiteral(t *testing.T) {
	for _, q := range []string{"c++", "(unclosed", "a.b*", `back\slash`, "[x]"} {
		pred := smart(q, domain.SearchFilters{})
		m, err := Compile(pred)
		require.NoError(t, err, q)
		for _, p := range catalog() {
			assert.False(t, m(&p), q)
		}
	}
}

func TestCompile_UnknownField(t *testing.T) {
	_, err := Compile(Match{Field: "nope", Terms: []string{"x"}})
	assert.Error(t, err)

	_, err = Compile(Range{Field: FieldName})
	assert.Error(t, err)
}

func TestCompile_EmptyCombinators(t *testing.T) {
	p := catalog()[0]
	all, err := Compile(And{})
	require.NoError(t, err)
	assert.True(t, all(&p))

	none, err := Compile(Or{})
	require.NoError(t, err)
	assert.False(t, none(&p))
}
