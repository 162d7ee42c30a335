// Package filter builds and evaluates the structured predicates that select
// candidate products for a query.
//
// A Predicate is a small boolean expression tree over named product fields.
// The memory engine evaluates it with Compile; the Elasticsearch engine
// translates it to query DSL.
package filter

// Field names a searchable product field using its document path.
type Field string

const (
	FieldStatus         Field = "status"
	FieldName           Field = "name"
	FieldDescription    Field = "description"
	FieldBrand          Field = "brand"
	FieldTags           Field = "tags"
	FieldCategoryMain   Field = "category.main"
	FieldCategorySub    Field = "category.sub"
	FieldCategoryType   Field = "category.type"
	FieldCategoryVar    Field = "category.variant"
	FieldCategoryStyle  Field = "category.style"
	FieldCategoryLevels Field = "category.allLevels.name"
	FieldColorName      Field = "colorVariants.colorName"
	FieldSize           Field = "colorVariants.sizeVariants.size"
	FieldCustomSize     Field = "colorVariants.sizeVariants.customSize"
	FieldPrice          Field = "price"
	FieldRating         Field = "rating.average"
	FieldStock          Field = "stock"
)

// CategoryFields are the five hierarchy levels plus the flattened level
// names.
var CategoryFields = []Field{
	FieldCategoryMain, FieldCategorySub, FieldCategoryType,
	FieldCategoryVar, FieldCategoryStyle, FieldCategoryLevels,
}

// ProductFields are the non-category text fields searched by free text.
var ProductFields = []Field{
	FieldName, FieldDescription, FieldBrand, FieldTags,
	FieldColorName, FieldSize, FieldCustomSize,
}

// MatchMode selects how a Match term is compared to a field value.
type MatchMode int

const (
	// WordBoundary matches the term as a whole word, case-insensitively.
	WordBoundary MatchMode = iota
	// Substring matches the term anywhere, case-insensitively.
	Substring
)

func (m MatchMode) String() string {
	if m == Substring {
		return "substring"
	}
	return "word_boundary"
}

// Predicate is a node of the expression tree.
type Predicate interface {
	predicate()
}

// And holds when every child holds. An empty And always holds.
type And []Predicate

// Or holds when at least one child holds. An empty Or never holds.
type Or []Predicate

// Match holds when any of Terms matches any value of Field.
type Match struct {
	Field Field
	Terms []string
	Mode  MatchMode
}

// Equals holds when Field equals Value exactly.
type Equals struct {
	Field Field
	Value string
}

// Range bounds a numeric field. Nil bounds are open. Gt is exclusive, Gte
// and Lte inclusive.
type Range struct {
	Field Field
	Gt    *float64
	Gte   *float64
	Lte   *float64
}

func (And) predicate()    {}
func (Or) predicate()     {}
func (Match) predicate()  {}
func (Equals) predicate() {}
func (Range) predicate()  {}

// anyField matches terms against each field, OR-ed.
func anyField(fields []Field, terms []string, mode MatchMode) Or {
	out := make(Or, 0, len(fields))
	for _, f := range fields {
		out = append(out, Match{Field: f, Terms: terms, Mode: mode})
	}
	return out
}

func float(v float64) *float64 { return &v }
