package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/searcher/handler"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	RPS         float64
	SortField   string
	Terms       []string
}

// request is one search of the workload; kind groups latencies in the
// report.
type request struct {
	kind string
	body []byte
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	rps := flag.Float64("rps", 0, "total request rate across workers, 0 for unlimited")
	sortField := flag.String("sort-field", "", "keyword field used by sorted searches, empty to skip them")
	flag.Parse()

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		RPS:         *rps,
		SortField:   *sortField,
		Terms: []string{
			"distributed systems",
			"search engine",
			"inverted index",
			"query parser",
			"relevance ranking",
			"posting lists",
			"phrase queries",
			"boolean retrieval",
			"document frequency",
			"field cache",
		},
	}
	workload, err := buildWorkload(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building workload: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Requests:    %d unique\n", len(workload))
	fmt.Println()

	start := time.Now()
	stats := run(cfg, workload)
	stats.Report(os.Stdout, time.Since(start))
	if stats.total.Load() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

// buildWorkload derives a mix of query shapes from the seed terms.
func buildWorkload(cfg Config) ([]request, error) {
	var out []request
	add := func(kind string, req handler.SearchRequest) error {
		body, err := json.Marshal(req)
		if err != nil {
			return err
		}
		out = append(out, request{kind: kind, body: body})
		return nil
	}
	for _, text := range cfg.Terms {
		shapes := []struct {
			kind string
			req  handler.SearchRequest
		}{
			{"match", handler.SearchRequest{Query: &handler.QuerySpec{Type: "match", Text: text}}},
			{"and", handler.SearchRequest{Query: &handler.QuerySpec{Type: "match", Text: text, Operator: "and"}}},
			{"phrase", handler.SearchRequest{Query: &handler.QuerySpec{Type: "phrase", Text: text, Slop: 1}}},
			{"fuzzy", handler.SearchRequest{Query: &handler.QuerySpec{Type: "fuzzy", Text: strings.Fields(text)[0] + "s"}}},
		}
		if cfg.SortField != "" {
			shapes = append(shapes, struct {
				kind string
				req  handler.SearchRequest
			}{"sorted", handler.SearchRequest{
				Query: &handler.QuerySpec{Type: "match", Text: text},
				Sort:  []search.SortField{{Field: cfg.SortField, Type: search.SortAuto, Reverse: true}},
			}})
		}
		for _, s := range shapes {
			if err := add(s.kind, s.req); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func run(cfg Config, workload []request) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, cfg.Concurrency))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := range cfg.Concurrency {
		apiKey := fmt.Sprintf("loadtest-%d", w)
		g.Go(func() error {
			for i := w; ; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return nil
				}
				req := workload[i%len(workload)]
				start := time.Now()
				status, hit, err := send(ctx, client, cfg.BaseURL, apiKey, req.body)
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					return nil
				}
				stats.Record(req.kind, time.Since(start), status, hit, err)
			}
		})
	}
	_ = g.Wait()
	return stats
}

func send(ctx context.Context, client *http.Client, baseURL, apiKey string, body []byte) (int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/search", bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, false, err
	}
	return resp.StatusCode, resp.Header.Get(handler.CacheHeader) == "HIT", nil
}
