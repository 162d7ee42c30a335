package filter

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/utafrali/shopsearch/internal/analysis"
	"github.com/utafrali/shopsearch/internal/domain"
)

// Matcher reports whether a product satisfies a compiled predicate.
type Matcher func(p *domain.SearchableProduct) bool

// Compile turns p into a Matcher. Match terms are escaped before they reach
// the regexp compiler, so the error is only returned for unknown fields or
// predicate types.
func Compile(p Predicate) (Matcher, error) {
	switch n := p.(type) {
	case nil:
		return func(*domain.SearchableProduct) bool { return true }, nil

	case And:
		children, err := compileAll(n)
		if err != nil {
			return nil, err
		}
		return func(sp *domain.SearchableProduct) bool {
			for _, c := range children {
				if !c(sp) {
					return false
				}
			}
			return true
		}, nil

	case Or:
		children, err := compileAll(n)
		if err != nil {
			return nil, err
		}
		return func(sp *domain.SearchableProduct) bool {
			for _, c := range children {
				if c(sp) {
					return true
				}
			}
			return false
		}, nil

	case Match:
		get, err := textField(n.Field)
		if err != nil {
			return nil, err
		}
		res := make([]*regexp.Regexp, 0, len(n.Terms))
		for _, t := range n.Terms {
			pattern := analysis.WordBoundaryPattern(t)
			if n.Mode == Substring {
				pattern = analysis.SubstringPattern(t)
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile %s term %q: %w", n.Field, t, err)
			}
			res = append(res, re)
		}
		return func(sp *domain.SearchableProduct) bool {
			for _, v := range get(sp) {
				for _, re := range res {
					if re.MatchString(v) {
						return true
					}
				}
			}
			return false
		}, nil

	case Equals:
		get, err := textField(n.Field)
		if err != nil {
			return nil, err
		}
		return func(sp *domain.SearchableProduct) bool {
			for _, v := range get(sp) {
				if v == n.Value {
					return true
				}
			}
			return false
		}, nil

	case Range:
		get, err := numericField(n.Field)
		if err != nil {
			return nil, err
		}
		return func(sp *domain.SearchableProduct) bool {
			v := get(sp)
			if n.Gt != nil && !(v > *n.Gt) {
				return false
			}
			if n.Gte != nil && v < *n.Gte {
				return false
			}
			if n.Lte != nil && v > *n.Lte {
				return false
			}
			return true
		}, nil
	}
	return nil, fmt.Errorf("filter: unsupported predicate %T", p)
}

func compileAll(ps []Predicate) ([]Matcher, error) {
	out := make([]Matcher, 0, len(ps))
	for _, p := range ps {
		m, err := Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func textField(f Field) (func(*domain.SearchableProduct) []string, error) {
	one := func(get func(*domain.SearchableProduct) string) func(*domain.SearchableProduct) []string {
		return func(p *domain.SearchableProduct) []string { return []string{get(p)} }
	}
	switch f {
	case FieldStatus:
		return one(func(p *domain.SearchableProduct) string { return p.Status }), nil
	case FieldName:
		return one(func(p *domain.SearchableProduct) string { return p.Name }), nil
	case FieldDescription:
		return one(func(p *domain.SearchableProduct) string { return p.Description }), nil
	case FieldBrand:
		return one(func(p *domain.SearchableProduct) string { return p.Brand }), nil
	case FieldTags:
		return func(p *domain.SearchableProduct) []string { return p.Tags }, nil
	case FieldCategoryMain:
		return one(func(p *domain.SearchableProduct) string { return p.Category.Main }), nil
	case FieldCategorySub:
		return one(func(p *domain.SearchableProduct) string { return p.Category.Sub }), nil
	case FieldCategoryType:
		return one(func(p *domain.SearchableProduct) string { return p.Category.Type }), nil
	case FieldCategoryVar:
		return one(func(p *domain.SearchableProduct) string { return p.Category.Variant }), nil
	case FieldCategoryStyle:
		return one(func(p *domain.SearchableProduct) string { return p.Category.Style }), nil
	case FieldCategoryLevels:
		return func(p *domain.SearchableProduct) []string {
			out := make([]string, 0, len(p.Category.AllLevels))
			for _, l := range p.Category.AllLevels {
				out = append(out, l.Name)
			}
			return out
		}, nil
	case FieldColorName:
		return func(p *domain.SearchableProduct) []string {
			out := make([]string, 0, len(p.ColorVariants))
			for _, cv := range p.ColorVariants {
				out = append(out, cv.ColorName)
			}
			return out
		}, nil
	case FieldSize, FieldCustomSize:
		custom := f == FieldCustomSize
		return func(p *domain.SearchableProduct) []string {
			var out []string
			for _, cv := range p.ColorVariants {
				for _, sv := range cv.SizeVariants {
					if custom {
						out = append(out, sv.CustomSize)
					} else {
						out = append(out, sv.Size)
					}
				}
			}
			return out
		}, nil
	case FieldPrice, FieldRating, FieldStock:
		num, _ := numericField(f)
		return func(p *domain.SearchableProduct) []string {
			return []string{strconv.FormatFloat(num(p), 'f', -1, 64)}
		}, nil
	}
	return nil, fmt.Errorf("filter: unknown text field %q", f)
}

func numericField(f Field) (func(*domain.SearchableProduct) float64, error) {
	switch f {
	case FieldPrice:
		return func(p *domain.SearchableProduct) float64 { return p.Price }, nil
	case FieldRating:
		return func(p *domain.SearchableProduct) float64 { return p.Rating.Average }, nil
	case FieldStock:
		return func(p *domain.SearchableProduct) float64 { return float64(p.Stock) }, nil
	}
	return nil, fmt.Errorf("filter: unknown numeric field %q", f)
}
