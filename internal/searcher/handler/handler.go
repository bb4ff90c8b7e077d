// Package handler serves the search engine over HTTP. Requests carry a
// structured JSON query, results are cached in Redis when a result cache is
// configured, and every search is reported to the analytics collector.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/tracing"
)

// CacheHeader reports whether a search was answered from the result cache.
const CacheHeader = "X-Cache"

const (
	maxBodyBytes = 1 << 20

	kindSearch  = "search"
	kindSorted  = "sorted"
	kindExplain = "explain"
)

// Options wires the handler to its collaborators. Cache, Collector, Metrics
// and EngineStats may be nil.
type Options struct {
	DefaultField    string
	Analyzer        tokenizer.Analyzer
	DefaultLimit    int
	MaxResults      int
	ShardCount      int
	FilterCacheSize int
	Cache           *cache.ResultCache
	Collector       *analytics.Collector
	Metrics         *metrics.Metrics
	EngineStats     func() search.CacheStats
}

type Handler struct {
	searcher search.Searchable
	queries  *queryBuilder
	opts     Options
	logger   *slog.Logger
}

func New(s search.Searchable, opts Options) (*Handler, error) {
	if s == nil {
		return nil, fmt.Errorf("handler needs a searcher: %w", apperrors.ErrInvalidInput)
	}
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults < opts.DefaultLimit {
		opts.MaxResults = opts.DefaultLimit
	}
	queries, err := newQueryBuilder(opts.DefaultField, opts.Analyzer, opts.FilterCacheSize, opts.ShardCount)
	if err != nil {
		return nil, err
	}
	return &Handler{
		searcher: s,
		queries:  queries,
		opts:     opts,
		logger:   slog.Default().With("component", "search-handler"),
	}, nil
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// SearchRequest is the body of POST /api/v1/search. A request with sort
// keys is answered in sort order, otherwise by relevance.
type SearchRequest struct {
	Query  *QuerySpec         `json:"query"`
	Filter *FilterSpec        `json:"filter,omitempty"`
	Limit  int                `json:"limit,omitempty"`
	Sort   []search.SortField `json:"sort,omitempty"`
}

type Hit struct {
	Doc        uint32            `json:"doc"`
	Score      float32           `json:"score"`
	SortValues []any             `json:"sort_values,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

type SearchResponse struct {
	Query     string             `json:"query"`
	TotalHits int                `json:"total_hits"`
	MaxScore  float32            `json:"max_score"`
	Sort      []search.SortField `json:"sort,omitempty"`
	Hits      []Hit              `json:"hits"`
}

type ExplainRequest struct {
	Query *QuerySpec `json:"query"`
	Doc   uint32     `json:"doc"`
}

type ExplainResponse struct {
	Query       string               `json:"query"`
	Doc         uint32               `json:"doc"`
	Score       float32              `json:"score"`
	Explanation *explain.Explanation `json:"explanation"`
	Text        string               `json:"text"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := logger.FromContext(r.Context())
	ctx, root := tracing.Start(r.Context(), "search")
	defer func() {
		root.End()
		root.Log(ctx, log)
	}()

	_, parse := tracing.Start(ctx, "parse")
	var req SearchRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := h.limit(req.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Limit = limit

	q, err := h.queries.Query(req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := h.queries.Filter(req.Filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sort, err := parseSort(req.Sort)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	parse.End()

	kind := kindSearch
	if sort != nil {
		kind = kindSorted
	}
	root.SetAttr("kind", kind)
	lookupCtx, lookup := tracing.Start(ctx, "lookup")
	compute := func() (*SearchResponse, error) {
		_, span := tracing.Start(lookupCtx, "engine")
		defer span.End()
		return h.execute(q, filter, limit, sort)
	}

	var (
		resp     *SearchResponse
		cacheHit bool
	)
	if h.opts.Cache != nil {
		var key string
		key, err = cache.Key(kind, req)
		if err == nil {
			resp, cacheHit, err = cache.GetOrCompute(ctx, h.opts.Cache, key, compute)
		}
	} else {
		resp, err = compute()
	}
	lookup.SetAttr("cache_hit", cacheHit)
	lookup.End()
	elapsed := time.Since(start)

	event := analytics.SearchEvent{
		Kind:       kind,
		Query:      q.String(""),
		LatencyMs:  elapsed.Milliseconds(),
		CacheHit:   cacheHit,
		ShardCount: h.opts.ShardCount,
		Timestamp:  time.Now().UTC(),
		RequestID:  logger.RequestID(ctx),
	}
	if sort != nil {
		event.Sort = sort.String()
	}
	totalHits := 0
	if resp != nil {
		totalHits = resp.TotalHits
		event.TotalHits = resp.TotalHits
		event.Returned = len(resp.Hits)
		event.MaxScore = resp.MaxScore
	}
	if err != nil {
		event.Error = err.Error()
	}
	h.observe(kind, cacheHit, elapsed, totalHits, err)
	h.track(event)

	if err != nil {
		log.Error("search failed", "kind", kind, "query", event.Query, "error", err)
		h.writeError(w, r, err)
		return
	}
	log.Info("search completed",
		"kind", kind,
		"query", event.Query,
		"total_hits", resp.TotalHits,
		"returned", len(resp.Hits),
		"cache_hit", cacheHit,
		"latency_ms", event.LatencyMs,
	)
	if h.opts.Cache != nil {
		w.Header().Set(CacheHeader, cacheStatus(cacheHit))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) execute(q search.Query, filter search.Filter, limit int, sort *search.Sort) (*SearchResponse, error) {
	resp := &SearchResponse{Query: q.String("")}
	if sort == nil {
		docs, err := h.searcher.Search(q, filter, limit)
		if err != nil {
			return nil, err
		}
		resp.TotalHits, resp.MaxScore = docs.TotalHits, docs.MaxScore
		resp.Hits = make([]Hit, 0, len(docs.ScoreDocs))
		for _, sd := range docs.ScoreDocs {
			resp.Hits = append(resp.Hits, Hit{Doc: sd.Doc, Score: sd.Score})
		}
	} else {
		docs, err := h.searcher.SearchSorted(q, filter, limit, sort)
		if err != nil {
			return nil, err
		}
		resp.TotalHits, resp.MaxScore, resp.Sort = docs.TotalHits, docs.MaxScore, docs.Fields
		resp.Hits = make([]Hit, 0, len(docs.ScoreDocs))
		for _, fd := range docs.ScoreDocs {
			resp.Hits = append(resp.Hits, Hit{Doc: fd.Doc, Score: fd.Score, SortValues: fd.Fields})
		}
	}
	for i := range resp.Hits {
		doc, err := h.searcher.Doc(resp.Hits[i].Doc)
		if err != nil {
			return nil, fmt.Errorf("loading doc %d: %w", resp.Hits[i].Doc, err)
		}
		resp.Hits[i].Fields = storedFields(doc.Fields)
	}
	return resp, nil
}

func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req ExplainRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	q, err := h.queries.Query(req.Query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, err := h.searcher.Explain(q, req.Doc)
	h.observe(kindExplain, false, time.Since(start), 1, err)
	if err != nil {
		logger.FromContext(r.Context()).Warn("explain failed", "query", q.String(""), "doc", req.Doc, "error", err)
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, &ExplainResponse{
		Query:       q.String(""),
		Doc:         req.Doc,
		Score:       e.Value,
		Explanation: e,
		Text:        e.String(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{}
	if h.opts.Cache == nil {
		body["results"] = map[string]string{"status": "disabled"}
	} else {
		stats := h.opts.Cache.Stats()
		var hitRate float64
		if total := stats.Hits + stats.Misses; total > 0 {
			hitRate = float64(stats.Hits) / float64(total) * 100
		}
		body["results"] = map[string]any{
			"hits":          stats.Hits,
			"misses":        stats.Misses,
			"errors":        stats.Errors,
			"breaker_state": stats.BreakerState,
			"hit_rate":      fmt.Sprintf("%.1f%%", hitRate),
		}
	}
	if h.opts.EngineStats != nil {
		body["engine"] = h.opts.EngineStats()
	}
	body["filters"] = map[string]int{"entries": h.queries.filters.Len()}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	purged := h.queries.filters.Len()
	h.queries.filters.Purge()
	if h.opts.Cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "filters": purged})
		return
	}
	removed, err := h.opts.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "filters": purged, "results": removed})
}

func (h *Handler) limit(requested int) (int, error) {
	switch {
	case requested == 0:
		return h.opts.DefaultLimit, nil
	case requested < 0:
		return 0, invalidf("limit must be a positive integer, got %d", requested)
	case requested > h.opts.MaxResults:
		return h.opts.MaxResults, nil
	default:
		return requested, nil
	}
}

func (h *Handler) observe(kind string, cacheHit bool, elapsed time.Duration, totalHits int, err error) {
	if h.opts.Metrics == nil {
		return
	}
	status := "miss"
	if cacheHit {
		status = "hit"
	}
	if h.opts.Cache == nil || kind == kindExplain {
		status = "none"
	}
	h.opts.Metrics.ObserveSearch(kind, status, elapsed.Seconds(), totalHits, err)
	if status == "none" || err != nil {
		return
	}
	if cacheHit {
		h.opts.Metrics.ResultCacheHits.Inc()
	} else {
		h.opts.Metrics.ResultCacheMisses.Inc()
	}
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func (h *Handler) track(event analytics.SearchEvent) {
	if h.opts.Collector == nil {
		return
	}
	event.Classify()
	h.opts.Collector.Track(event)
}

func storedFields(fields []index.Field) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, seen := out[f.Name]; !seen {
			out[f.Name] = f.Value
		}
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", tooLarge.Limit)
		}
		return invalidf("malformed request body: %v", err)
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError reports client errors verbatim and hides the details of
// server-side failures.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		message = http.StatusText(status)
	}
	h.writeJSON(w, status, map[string]string{
		"error":      message,
		"request_id": logger.RequestID(r.Context()),
	})
}
