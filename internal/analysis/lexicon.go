package analysis

// The tables below are read-only after package initialisation.

var stopWords = setOf(
	"for", "the", "a", "an", "and", "or", "in", "on", "at", "to", "with", "of",
	"from", "by", "as", "is", "are", "was", "were", "be", "been", "being",
	"have", "has", "had", "do", "does", "did",
)

// primaryCategory is one canonical audience/department and the colloquial
// words that select it.
type primaryCategory struct {
	name     string
	keywords []string
}

// primaryCategories is ordered: detection returns the first entry with a
// matching keyword, regardless of where that keyword appears in the query.
var primaryCategories = []primaryCategory{
	{"men", []string{"men", "male", "man", "mens", "men's", "mans", "gents", "gentleman"}},
	{"women", []string{"women", "female", "woman", "womens", "women's", "womans", "ladies", "lady"}},
	{"boys", []string{"boys", "boy", "lads"}},
	{"girls", []string{"girls", "girl"}},
	{"kids", []string{"kids", "kid", "children", "child", "infant", "toddler", "baby", "babies"}},
	{"toys", []string{"toy", "toys", "plaything", "playthings"}},
	{"electronics", []string{"electronic", "electronics", "gadget", "gadgets"}},
	{"appliances", []string{"appliance", "appliances"}},
	{"unisex", []string{"unisex", "neutral", "gender-neutral"}},
}

var primaryCategoryByName = func() map[string][]string {
	m := make(map[string][]string, len(primaryCategories))
	for _, c := range primaryCategories {
		m[c.name] = c.keywords
	}
	return m
}()

// productTypes are the words recognised as a product-type facet.
var productTypes = setOf(
	// apparel
	"shirt", "shirts", "t-shirt", "t-shirts", "tshirt", "tee", "tees", "top", "tops",
	"blouse", "jeans", "denim", "pants", "trousers", "shorts", "skirt", "dress",
	"dresses", "gown", "saree", "sari", "kurta", "kurti", "jacket", "jackets",
	"coat", "sweater", "hoodie", "sweatshirt", "suit", "blazer", "leggings",
	"socks", "underwear", "pajamas",
	// footwear and accessories
	"shoes", "shoe", "sneakers", "boots", "sandals", "slippers", "heels",
	"watch", "watches", "bag", "bags", "handbag", "backpack", "wallet", "belt",
	"cap", "hat", "sunglasses", "jewelry", "necklace", "ring", "earrings",
	// electronics
	"phone", "phones", "mobile", "smartphone", "laptop", "laptops", "notebook",
	"tablet", "headphones", "earphones", "earbuds", "speaker", "camera", "tv",
	"television", "monitor", "keyboard", "mouse", "charger", "console",
	// home and appliances
	"refrigerator", "fridge", "microwave", "blender", "mixer", "toaster",
	"kettle", "fan", "heater", "iron", "vacuum",
	// toys
	"doll", "puzzle", "lego",
)

// categoryNormalization maps colloquial category words to canonical ones.
var categoryNormalization = map[string]string{
	"man": "men", "mans": "men", "men": "men", "mens": "men", "men's": "men",
	"male": "men", "gents": "men", "gentleman": "men",
	"woman": "women", "womans": "women", "women": "women", "womens": "women",
	"women's": "women", "female": "women", "ladies": "women", "lady": "women",
	"boy": "boys", "boys": "boys", "boy's": "boys", "lads": "boys",
	"girl": "girls", "girls": "girls", "girl's": "girls",
	"kid": "kids", "kids": "kids", "kid's": "kids", "child": "kids",
	"children": "kids", "childrens": "kids", "infant": "kids", "toddler": "kids",
	"baby": "kids", "babies": "kids",
	"toy": "toys", "toys": "toys",
	"electronic": "electronics", "electronics": "electronics",
	"appliance": "appliances", "appliances": "appliances",
}

// productNormalization maps colloquial product words to canonical ones.
var productNormalization = map[string]string{
	"tshirt": "t-shirt", "tshirts": "t-shirt", "tee": "t-shirt", "tees": "t-shirt",
	"t-shirt": "t-shirt", "t-shirts": "t-shirt",
	"jeans": "jeans", "jean": "jeans", "denim": "jeans", "denims": "jeans",
	"mobile": "phone", "mobiles": "phone", "cellphone": "phone",
	"smartphone": "phone", "smartphones": "phone", "iphone": "phone", "android": "phone",
	"laptop": "laptop", "laptops": "laptop", "notebook": "laptop",
	"notebooks": "laptop", "macbook": "laptop", "computer": "laptop",
	"earphones": "headphones", "earphone": "headphones", "headphone": "headphones",
	"earbuds": "headphones", "earbud": "headphones",
	"sneakers": "shoes", "sneaker": "shoes", "footwear": "shoes", "sandal": "shoes",
	"sandals": "shoes", "flipflop": "shoes", "flipflops": "shoes", "slipper": "shoes",
	"slippers": "shoes", "boot": "shoes", "boots": "shoes", "shoe": "shoes",
	"shirt": "shirt", "shirts": "shirt",
	"dress": "dress", "dresses": "dress", "gown": "dress", "frock": "dress",
	"saree": "saree", "sarees": "saree", "sari": "saree", "saris": "saree",
	"kurta": "kurta", "kurtas": "kurta", "kurti": "kurta", "kurtis": "kurta",
	"pant": "pants", "pants": "pants", "trouser": "pants", "trousers": "pants",
	"jacket": "jacket", "jackets": "jacket", "coat": "jacket", "coats": "jacket",
	"sweater": "sweater", "sweaters": "sweater", "pullover": "sweater",
	"hoodie": "hoodie", "hoodies": "hoodie", "sweatshirt": "hoodie", "sweatshirts": "hoodie",
	"casual": "casual",
	"watch": "watch", "watches": "watch", "wristwatch": "watch", "timepiece": "watch",
	"bag": "bag", "bags": "bag", "handbag": "bag", "handbags": "bag", "purse": "bag",
	"purses": "bag", "backpack": "bag", "backpacks": "bag",
}

// Vocabulary returns every word the lexicon knows, for spelling correction.
// The result is sorted and free of duplicates.
func Vocabulary() []string {
	return vocabulary
}

var vocabulary = func() []string {
	seen := make(map[string]struct{})
	for w := range productTypes {
		seen[w] = struct{}{}
	}
	for _, c := range primaryCategories {
		for _, k := range c.keywords {
			seen[k] = struct{}{}
		}
	}
	for _, m := range []map[string]string{categoryNormalization, productNormalization} {
		for k, v := range m {
			seen[k] = struct{}{}
			seen[v] = struct{}{}
		}
	}
	return sortedKeys(seen)
}()
