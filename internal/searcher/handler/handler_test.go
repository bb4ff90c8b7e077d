package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/memory"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/fieldcache"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/middleware"
)

type doc struct{ id, body, year string }

var shards = [][]doc{
	{
		{"a", "distributed search engine", "2004"},
		{"b", "search ranking functions", "2006"},
		{"c", "inverted index structures", "2001"},
	},
	{
		{"d", "the search engine internals", "2005"},
		{"e", "query parsing", "2003"},
	},
}

func newEngine(t *testing.T) search.Searchable {
	t.Helper()
	subs := make([]search.Searchable, len(shards))
	for i, docs := range shards {
		b := memory.NewBuilder(tokenizer.English{}, nil)
		for _, d := range docs {
			b.Add(memory.Keyword("id", d.id), memory.Text("body", d.body), memory.Keyword("year", d.year))
		}
		s, err := search.NewIndexSearcher(b.Build())
		require.NoError(t, err)
		subs[i] = s
	}
	ms, err := search.NewParallelMultiSearcher(subs...)
	require.NoError(t, err)
	return ms
}

func newServer(t *testing.T, s search.Searchable, opts Options) http.Handler {
	t.Helper()
	opts.DefaultField = "body"
	opts.Analyzer = tokenizer.English{}
	if opts.MaxResults == 0 {
		opts.MaxResults = 100
	}
	opts.ShardCount = len(shards)
	h, err := New(s, opts)
	require.NoError(t, err)
	mux := http.NewServeMux()
	h.Register(mux)
	return middleware.RequestID(mux)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func searchOK(t *testing.T, srv http.Handler, body string) SearchResponse {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func ids(hits []Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Fields["id"]
	}
	return out
}

func TestSearchQueries(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	tests := []struct {
		name  string
		body  string
		total int
		want  []string
	}{
		{"match", `{"query":{"type":"match","text":"Search"}}`, 3, []string{"a", "b", "d"}},
		{"match and", `{"query":{"type":"match","text":"search engine","operator":"and"}}`, 2, []string{"a", "d"}},
		{"keyword term", `{"query":{"type":"term","field":"id","text":"c"}}`, 1, []string{"c"}},
		{"phrase skips stop words", `{"query":{"type":"phrase","text":"the search engine"}}`, 2, []string{"a", "d"}},
		{"bool must not", `{"query":{"type":"bool","must":[{"type":"match","text":"search"}],"must_not":[{"type":"term","field":"id","text":"b"}]}}`, 2, []string{"a", "d"}},
		{"range", `{"query":{"type":"range","field":"year","lower":"2003","upper":"2005","inclusive":true}}`, 3, []string{"a", "d", "e"}},
		{"prefix", `{"query":{"type":"prefix","field":"year","text":"200"}}`, 5, []string{"a", "b", "c", "d", "e"}},
		{"match all", `{"query":{"type":"match_all"}}`, 5, []string{"a", "b", "c", "d", "e"}},
		{"constant", `{"query":{"type":"constant","filter":{"type":"range","field":"year","lower":"2005"}}}`, 1, []string{"b"}},
		{"filtered", `{"query":{"type":"filtered","query":{"type":"match","text":"search"},"filter":{"type":"query","query":{"type":"term","field":"id","text":"d"}}}}`, 1, []string{"d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := searchOK(t, srv, tt.body)
			assert.Equal(t, tt.total, resp.TotalHits)
			assert.ElementsMatch(t, tt.want, ids(resp.Hits))
			assert.NotEmpty(t, resp.Query)
		})
	}
}

func TestSearchRelevanceOrder(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	resp := searchOK(t, srv, `{"query":{"type":"match","text":"search engine"}}`)
	require.Len(t, resp.Hits, 3)
	assert.Equal(t, resp.Hits[0].Score, resp.MaxScore)
	for i := 1; i < len(resp.Hits); i++ {
		assert.GreaterOrEqual(t, resp.Hits[i-1].Score, resp.Hits[i].Score)
	}
	assert.Equal(t, "b", resp.Hits[2].Fields["id"])
}

func TestSearchSorted(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	resp := searchOK(t, srv, `{"query":{"type":"match_all"},"sort":[{"field":"year","type":"int"}]}`)
	assert.Equal(t, []string{"c", "e", "a", "d", "b"}, ids(resp.Hits))
	assert.Equal(t, []any{float64(2001)}, resp.Hits[0].SortValues)
	require.Len(t, resp.Sort, 1)
	assert.Equal(t, search.SortInt, resp.Sort[0].Type)

	resp = searchOK(t, srv, `{"query":{"type":"match","text":"search"},"sort":[{"field":"year","type":"auto","reverse":true}],"limit":2}`)
	assert.Equal(t, []string{"b", "d"}, ids(resp.Hits))
	assert.Equal(t, 3, resp.TotalHits)
}

func TestSearchWithFilter(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	body := `{"query":{"type":"match","text":"search"},"filter":{"type":"range","field":"year","lower":"2005","upper":"2006","include_lower":true,"include_upper":true}}`
	resp := searchOK(t, srv, body)
	assert.ElementsMatch(t, []string{"b", "d"}, ids(resp.Hits))

	// The same filter is served from the filter cache.
	resp = searchOK(t, srv, body)
	assert.ElementsMatch(t, []string{"b", "d"}, ids(resp.Hits))

	rec := do(t, srv, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Filters struct {
			Entries int `json:"entries"`
		} `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Filters.Entries)
}

func TestSearchLimit(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{DefaultLimit: 2, MaxResults: 3})
	resp := searchOK(t, srv, `{"query":{"type":"match_all"}}`)
	assert.Len(t, resp.Hits, 2)
	resp = searchOK(t, srv, `{"query":{"type":"match_all"},"limit":50}`)
	assert.Len(t, resp.Hits, 3)
	assert.Equal(t, 5, resp.TotalHits)
}

func TestSearchRejectsBadRequests(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"query":`},
		{"unknown field", `{"query":{"type":"match_all"},"size":3}`},
		{"missing query", `{"limit":3}`},
		{"missing type", `{"query":{"text":"search"}}`},
		{"unknown type", `{"query":{"type":"regexp","text":"se.*"}}`},
		{"negative limit", `{"query":{"type":"match_all"},"limit":-1}`},
		{"unknown sort type", `{"query":{"type":"match_all"},"sort":[{"field":"year","type":"bogus"}]}`},
		{"sort without field", `{"query":{"type":"match_all"},"sort":[{"type":"int"}]}`},
		{"locale on int key", `{"query":{"type":"match_all"},"sort":[{"field":"year","type":"int","locale":"de"}]}`},
		{"empty bool", `{"query":{"type":"bool"}}`},
		{"only stop words", `{"query":{"type":"match","text":"the and"}}`},
		{"bad operator", `{"query":{"type":"match","text":"search","operator":"xor"}}`},
		{"negative boost", `{"query":{"type":"match_all","boost":-1}}`},
		{"positions mismatch", `{"query":{"type":"phrase","terms":["a","b"],"positions":[0]}}`},
		{"open range", `{"query":{"type":"range","field":"year"}}`},
		{"fuzzy similarity", `{"query":{"type":"fuzzy","text":"serch","min_similarity":1.5}}`},
		{"filtered without filter", `{"query":{"type":"filtered","query":{"type":"match_all"}}}`},
		{"unknown filter", `{"query":{"type":"match_all"},"filter":{"type":"geo"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/v1/search", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			assert.NotEmpty(t, body["request_id"])
		})
	}
}

func TestSearchRejectsDeepNesting(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	body := `{"type":"match_all"}`
	for range maxQueryDepth + 2 {
		body = `{"type":"bool","must":[` + body + `]}`
	}
	rec := do(t, srv, http.MethodPost, "/api/v1/search", `{"query":`+body+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "nested deeper")
}

func TestSearchRejectsOversizedBody(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	body := `{"query":{"type":"match","text":"` + strings.Repeat("x", maxBodyBytes) + `"}}`
	rec := do(t, srv, http.MethodPost, "/api/v1/search", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExplain(t *testing.T) {
	srv := newServer(t, newEngine(t), Options{})
	query := `{"type":"match","text":"search engine"}`
	resp := searchOK(t, srv, `{"query":`+query+`}`)
	for _, hit := range resp.Hits {
		rec := do(t, srv, http.MethodPost, "/api/v1/explain", fmt.Sprintf(`{"query":%s,"doc":%d}`, query, hit.Doc))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var e ExplainResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
		assert.InDelta(t, hit.Score, e.Score, 1e-5)
		assert.Equal(t, hit.Doc, e.Doc)
		assert.NotEmpty(t, e.Text)
		require.NotNil(t, e.Explanation)
	}

	rec := do(t, srv, http.MethodPost, "/api/v1/explain", `{"query":`+query+`,"doc":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func TestSearchUsesResultCache(t *testing.T) {
	store := &memStore{data: make(map[string][]byte)}
	rc := cache.New(store, config.CacheConfig{TTL: time.Minute, OperationTimeout: time.Second}, nil)
	m := metrics.New(prometheus.NewRegistry())
	srv := newServer(t, newEngine(t), Options{Cache: rc, Metrics: m})

	body := `{"query":{"type":"match","text":"search"}}`
	first := do(t, srv, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, first.Code)
	second := do(t, srv, http.MethodPost, "/api/v1/search", body)
	require.Equal(t, http.StatusOK, second.Code)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "MISS", first.Header().Get(CacheHeader))
	assert.Equal(t, "HIT", second.Header().Get(CacheHeader))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResultCacheMisses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(kindSearch, metrics.OutcomeOK)))
	assert.Len(t, store.data, 1)

	rec := do(t, srv, http.MethodPost, "/api/v1/cache/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var inv struct {
		Results int64 `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	assert.Equal(t, int64(1), inv.Results)
	assert.Empty(t, store.data)

	rec = do(t, srv, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Results map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, float64(1), stats.Results["hits"])
	assert.Equal(t, "closed", stats.Results["breaker_state"])
}

func TestCacheStatsWithoutResultCache(t *testing.T) {
	engine := search.CacheStats{Fields: fieldcache.Stats{Hits: 3, Misses: 1, Entries: 2}}
	srv := newServer(t, newEngine(t), Options{EngineStats: func() search.CacheStats { return engine }})

	rec := do(t, srv, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Results map[string]string `json:"results"`
		Engine  search.CacheStats `json:"engine"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, "disabled", stats.Results["status"])
	assert.Equal(t, engine, stats.Engine)

	rec = do(t, srv, http.MethodPost, "/api/v1/cache/invalidate", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingSearcher struct {
	search.Searchable
}

func (failingSearcher) Search(search.Query, search.Filter, int) (*search.TopDocs, error) {
	return nil, fmt.Errorf("shard 2 at /var/data lost: %w", apperrors.ErrUnavailable)
}

func TestSearchFailureHidesDetails(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	srv := newServer(t, failingSearcher{newEngine(t)}, Options{Metrics: m})
	rec := do(t, srv, http.MethodPost, "/api/v1/search", `{"query":{"type":"match_all"}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "/var/data")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SearchQueriesTotal.WithLabelValues(kindSearch, metrics.OutcomeError)))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func TestSearchTracksAnalytics(t *testing.T) {
	pub := &recordingPublisher{}
	collector := analytics.NewCollector(pub, analytics.Options{BatchSize: 1, FlushInterval: time.Hour})
	collector.Start(context.Background())
	srv := newServer(t, newEngine(t), Options{Collector: collector})

	searchOK(t, srv, `{"query":{"type":"match","text":"search"}}`)
	searchOK(t, srv, `{"query":{"type":"term","field":"id","text":"zzz"}}`)
	do(t, srv, http.MethodPost, "/api/v1/search", `{"query":{"type":"match_all"},"sort":[{"field":"body","type":"custom"}]}`)
	collector.Close()

	require.Len(t, pub.events, 2)
	first := pub.events[0].Value.(analytics.SearchEvent)
	assert.Equal(t, analytics.EventSearch, first.Type)
	assert.Equal(t, 3, first.TotalHits)
	assert.Equal(t, len(shards), first.ShardCount)
	assert.NotEmpty(t, first.RequestID)
	assert.Equal(t, first.RequestID, pub.events[0].Key)

	second := pub.events[1].Value.(analytics.SearchEvent)
	assert.Equal(t, analytics.EventZeroResult, second.Type)
	assert.Equal(t, "id:zzz", second.Query)
}
