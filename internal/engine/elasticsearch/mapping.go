package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for product documents.
const DefaultIndexName = "shopsearch_products"

// Text fields are keywords behind a lowercase normalizer so regexp and
// wildcard queries see the whole value, case-folded. Fields used for facets
// carry an unnormalized "raw" sub-field so buckets keep their display form.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "normalizer": {
        "lowercase": { "type": "custom", "filter": ["lowercase"] }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "keyword", "normalizer": "lowercase", "ignore_above": 1024 },
      "description": { "type": "keyword", "normalizer": "lowercase", "ignore_above": 8000 },
      "brand":       { "type": "keyword", "normalizer": "lowercase", "fields": { "raw": { "type": "keyword" } } },
      "tags":        { "type": "keyword", "normalizer": "lowercase" },
      "category": {
        "properties": {
          "main":      { "type": "keyword", "normalizer": "lowercase", "fields": { "raw": { "type": "keyword" } } },
          "sub":       { "type": "keyword", "normalizer": "lowercase" },
          "type":      { "type": "keyword", "normalizer": "lowercase" },
          "variant":   { "type": "keyword", "normalizer": "lowercase" },
          "style":     { "type": "keyword", "normalizer": "lowercase" },
          "fullPath":  { "type": "keyword" },
          "allLevels": {
            "properties": {
              "level": { "type": "integer" },
              "name":  { "type": "keyword", "normalizer": "lowercase" },
              "slug":  { "type": "keyword" }
            }
          }
        }
      },
      "colorVariants": {
        "properties": {
          "colorName": { "type": "keyword", "normalizer": "lowercase" },
          "colorCode": { "type": "keyword", "index": false },
          "sizeVariants": {
            "properties": {
              "size":       { "type": "keyword", "normalizer": "lowercase" },
              "customSize": { "type": "keyword", "normalizer": "lowercase" },
              "stock":      { "type": "integer" }
            }
          }
        }
      },
      "price":      { "type": "double" },
      "stock":      { "type": "integer" },
      "rating": {
        "properties": {
          "average": { "type": "float" },
          "count":   { "type": "integer" }
        }
      },
      "viewCount":  { "type": "integer" },
      "salesCount": { "type": "integer" },
      "status":     { "type": "keyword" },
      "imageUrl":   { "type": "keyword", "index": false },
      "createdAt":  { "type": "date" },
      "updatedAt":  { "type": "date" }
    }
  }
}`
}
