package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

var errRedisDown = errors.New("redis down")

type memStore struct {
	mu    sync.Mutex
	data  map[string][]byte
	fail  bool
	calls atomic.Int64
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errRedisDown
	}
	v, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, apperrors.ErrNotFound)
	}
	return v, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errRedisDown
	}
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

type result struct {
	TotalHits int       `json:"total_hits"`
	Docs      []uint32  `json:"docs"`
	Scores    []float32 `json:"scores"`
}

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:          true,
		TTL:              time.Minute,
		FailureThreshold: 2,
		SuccessThreshold: 1,
		OpenTimeout:      time.Hour,
		OperationTimeout: time.Second,
	}
}

func TestGetOrComputeCachesResults(t *testing.T) {
	c := New(newMemStore(), testConfig(), nil)
	key, err := Key("search", map[string]any{"q": "body:search", "limit": 10})
	require.NoError(t, err)

	computed := 0
	compute := func() (*result, error) {
		computed++
		return &result{TotalHits: 2, Docs: []uint32{4, 1}, Scores: []float32{1.5, 0.25}}, nil
	}

	first, hit, err := GetOrCompute(context.Background(), c, key, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	second, hit, err := GetOrCompute(context.Background(), c, key, compute)
	require.NoError(t, err)
	assert.True(t, hit)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, computed)
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses, "the first call misses before and inside the flight")
	assert.Equal(t, "closed", stats.BreakerState)
}

func TestGetOrComputeCoalescesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), testConfig(), nil)
	var computed atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, _, err := GetOrCompute(context.Background(), c, "search:k", func() (*result, error) {
				computed.Add(1)
				<-release
				return &result{TotalHits: 1}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 1, r.TotalHits)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), computed.Load())
}

func TestComputeErrorsAreNotCached(t *testing.T) {
	c := New(newMemStore(), testConfig(), nil)
	boom := errors.New("shard failed")
	_, _, err := GetOrCompute(context.Background(), c, "search:k", func() (*result, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	r, hit, err := GetOrCompute(context.Background(), c, "search:k", func() (*result, error) { return &result{TotalHits: 3}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, r.TotalHits)
}

func TestStoreFailuresOpenTheBreaker(t *testing.T) {
	store := newMemStore()
	store.fail = true
	c := New(store, testConfig(), nil)
	compute := func() (*result, error) { return &result{TotalHits: 1}, nil }

	_, hit, err := GetOrCompute(context.Background(), c, "search:k", compute)
	require.NoError(t, err, "store failures fall back to computing")
	assert.False(t, hit)
	assert.Equal(t, resilience.StateOpen.String(), c.Stats().BreakerState)

	before := store.calls.Load()
	_, _, err = GetOrCompute(context.Background(), c, "search:k", compute)
	require.NoError(t, err)
	assert.Equal(t, before, store.calls.Load(), "an open breaker skips the store")
	assert.Equal(t, int64(2), c.Stats().Errors)
}

func TestCorruptEntriesAreMisses(t *testing.T) {
	store := newMemStore()
	store.data["search:k"] = []byte("{not json")
	c := New(store, testConfig(), nil)
	r, hit, err := GetOrCompute(context.Background(), c, "search:k", func() (*result, error) { return &result{TotalHits: 7}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, r.TotalHits)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["other:k"] = []byte("1")
	c := New(store, testConfig(), nil)
	for _, k := range []string{"search:a", "search:b"} {
		_, _, err := GetOrCompute(context.Background(), c, k, func() (*result, error) { return &result{}, nil })
		require.NoError(t, err)
	}
	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.data, 1)
}

func TestKey(t *testing.T) {
	req := map[string]any{"limit": 10, "query": map[string]string{"term": "body:x"}}
	a, err := Key("search", req)
	require.NoError(t, err)
	b, err := Key("search", map[string]any{"query": map[string]string{"term": "body:x"}, "limit": 10})
	require.NoError(t, err)
	sorted, err := Key("sorted", req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, sorted)
	assert.True(t, strings.HasPrefix(a, "search:search:"))

	_, err = Key("search", make(chan int))
	assert.Error(t, err)
}
