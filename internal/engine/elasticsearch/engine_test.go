package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopsearch/internal/domain"
	"github.com/utafrali/shopsearch/internal/engine"
	"github.com/utafrali/shopsearch/internal/filter"
	apperrors "github.com/utafrali/shopsearch/pkg/errors"
)

func TestWordBoundaryRegexp(t *testing.T) {
	pattern := WordBoundaryRegexp("t-shirt")
	assert.Equal(t, `(.*[^a-z0-9_])?t-shirt([^a-z0-9_].*)?`, pattern)

	// Lucene regexps are anchored; emulate that to check the boundaries.
	re := regexp.MustCompile("^" + pattern + "$")
	assert.True(t, re.MatchString("graphic t-shirt"))
	assert.True(t, re.MatchString("t-shirt"))
	assert.False(t, re.MatchString("t-shirts"))
	assert.False(t, re.MatchString("bigt-shirt"))
}

func TestEscapeRegexp(t *testing.T) {
	assert.Equal(t, `c\+\+`, escapeRegexp("c++"))
	assert.Equal(t, `\(a\|b\)\.\*`, escapeRegexp("(a|b).*"))
	assert.Equal(t, `\*x\?\\`, escapeWildcard(`*x?\`))
}

func TestTranslate(t *testing.T) {
	gte := 10.0
	pred := filter.And{
		filter.Equals{Field: filter.FieldStatus, Value: "active"},
		filter.Or{
			filter.Match{Field: filter.FieldName, Terms: []string{"Shirt"}},
			filter.Match{Field: filter.FieldBrand, Terms: []string{"ac*"}, Mode: filter.Substring},
		},
		filter.Range{Field: filter.FieldPrice, Gte: &gte},
	}

	got, err := translate(pred)
	require.NoError(t, err)

	want := `{"bool":{"filter":[
		{"term":{"status":"active"}},
		{"bool":{"minimum_should_match":1,"should":[
			{"regexp":{"name":{"case_insensitive":true,"flags":"NONE","value":"(.*[^a-z0-9_])?shirt([^a-z0-9_].*)?"}}},
			{"wildcard":{"brand":{"case_insensitive":true,"value":"*ac\\**"}}}
		]}},
		{"range":{"price":{"gte":10}}}
	]}}`
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(data))
}

func TestTranslate_EmptyCombinators(t *testing.T) {
	got, err := translate(filter.Or{})
	require.NoError(t, err)
	assert.Contains(t, got, "match_none")

	got, err = translate(filter.And{})
	require.NoError(t, err)
	assert.Contains(t, got, "match_all")
}

func TestBuildSort(t *testing.T) {
	assert.Equal(t, []any{map[string]any{"id": "asc"}}, buildSort(domain.SortRelevance))
	assert.Equal(t, map[string]any{"salesCount": "desc"}, buildSort(domain.SortPopularity)[0])
}

// fakeCluster answers the handful of endpoints the engine calls.
type fakeCluster struct {
	mu      sync.Mutex
	bodies  []string
	search  string
	indexed bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, r.Method+" "+r.URL.Path+" "+string(body))
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead:
		if f.indexed {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && !strings.Contains(r.URL.Path, "_doc"):
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_, _ = w.Write([]byte(f.search))
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/_doc/"):
		if strings.HasSuffix(r.URL.Path, "/missing") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"found":true,"_source":{"id":"p1","name":"Shirt"}}`))
	default:
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeCluster) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func newTestEngine(t *testing.T, f *fakeCluster) *Engine {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	e, err := New(context.Background(), srv.URL, "test_products", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return e
}

func TestEngine_NewCreatesMissingIndex(t *testing.T) {
	f := &fakeCluster{}
	newTestEngine(t, f)

	reqs := f.requests()
	require.Len(t, reqs, 2)
	assert.True(t, strings.HasPrefix(reqs[0], "HEAD /test_products"))
	assert.True(t, strings.HasPrefix(reqs[1], "PUT /test_products"))
	assert.Contains(t, reqs[1], `"normalizer"`)
}

func TestEngine_Find(t *testing.T) {
	f := &fakeCluster{indexed: true, search: `{"hits":{"total":{"value":42},"hits":[
		{"_source":{"id":"p1","name":"Shirt","price":10}},
		{"_source":{"id":"p2","name":"Tee","price":12}}]}}`}
	e := newTestEngine(t, f)

	res, err := e.Find(context.Background(), filter.And{filter.Active}, engine.FindOptions{
		SortBy: domain.SortPriceAsc, Offset: 20, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Total)
	require.Len(t, res.Products, 2)
	assert.Equal(t, "p2", res.Products[1].ID)

	reqs := f.requests()
	last := reqs[len(reqs)-1]
	assert.Contains(t, last, `"from":20`)
	assert.Contains(t, last, `"size":2`)
	assert.Contains(t, last, `{"price":"asc"}`)
}

func TestEngine_Facets(t *testing.T) {
	f := &fakeCluster{indexed: true, search: `{"hits":{"total":{"value":3},"hits":[]},"aggregations":{
		"brands":{"buckets":[{"key":"Acme","doc_count":2},{"key":"Bolt","doc_count":1}]},
		"categories":{"buckets":[{"key":"Men","doc_count":3}]},
		"min_price":{"value":5},"max_price":{"value":50},
		"ratings":{"buckets":[{"key":"1","doc_count":3},{"key":"2","doc_count":3},{"key":"3","doc_count":1},{"key":"4","doc_count":0},{"key":"5","doc_count":0}]}}}`}
	e := newTestEngine(t, f)

	facets, err := e.Facets(context.Background(), filter.And{filter.Active})
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Bolt"}, facets.Brands)
	assert.Equal(t, []domain.FacetCount{{Name: "Men", Count: 3}}, facets.Categories)
	assert.Equal(t, domain.PriceRange{Min: 5, Max: 50}, facets.PriceRange)
	assert.Equal(t, []domain.FacetCount{{Name: "1", Count: 3}, {Name: "2", Count: 3}, {Name: "3", Count: 1}}, facets.Ratings)
}

func TestEngine_Get(t *testing.T) {
	f := &fakeCluster{indexed: true}
	e := newTestEngine(t, f)

	p, err := e.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Shirt", p.Name)

	_, err = e.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
