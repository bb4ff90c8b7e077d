package search

import (
	"fmt"
	"sync"
	"time"
)

// ParallelMultiSearcher is a MultiSearcher that runs the bounded searches
// of its searchables concurrently, one goroutine each, merging into one
// queue. Collect stays sequential.
type ParallelMultiSearcher struct {
	*MultiSearcher
}

func NewParallelMultiSearcher(searchables ...Searchable) (*ParallelMultiSearcher, error) {
	ms, err := newMultiSearcher("parallel-multi-searcher", searchables)
	if err != nil {
		return nil, err
	}
	return &ParallelMultiSearcher{MultiSearcher: ms}, nil
}

func (s *ParallelMultiSearcher) Search(q Query, filter Filter, n int) (*TopDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeight(w, filter, n)
}

func (s *ParallelMultiSearcher) SearchSorted(q Query, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeightSorted(w, filter, n, sort)
}

// fanOut runs search for every searchable and waits for all of them. It
// returns the first failure in searchable order.
func (s *ParallelMultiSearcher) fanOut(op string, search func(i int, sub Searchable) error) error {
	start := time.Now()
	errs := make([]error, len(s.searchables))
	var wg sync.WaitGroup
	for i, sub := range s.searchables {
		wg.Add(1)
		go func(i int, sub Searchable) {
			defer wg.Done()
			if err := search(i, sub); err != nil {
				s.log.Warn("sub-search failed",
					"op", op,
					"searchable", i,
					"error", err,
				)
				errs[i] = err
			}
		}(i, sub)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("searching searchable %d: %w", i, err)
		}
	}
	s.log.Debug("fan-out completed",
		"op", op,
		"searchables", len(s.searchables),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *ParallelMultiSearcher) SearchWeight(w Weight, filter Filter, n int) (*TopDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	hq := NewHitQueue(n)
	var mu sync.Mutex
	totals := make([]int, len(s.searchables))
	err := s.fanOut("search", func(i int, sub Searchable) error {
		docs, err := sub.SearchWeight(w, filter, n)
		if err != nil {
			return err
		}
		totals[i] = docs.TotalHits
		mergeHits(hq, docs.ScoreDocs, s.starts[i], &mu)
		return nil
	})
	if err != nil {
		return nil, err
	}
	total := 0
	for _, t := range totals {
		total += t
	}
	return topDocsFrom(hq, total), nil
}

// SearchWeightSorted fixes the merge order from the resolved sort keys of
// the first searchable to answer and rejects searchables that resolve them
// differently.
func (s *ParallelMultiSearcher) SearchWeightSorted(w Weight, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	fq := NewFieldDocSortedHitQueue(n)
	var mu sync.Mutex
	results := make([]*TopFieldDocs, len(s.searchables))
	err := s.fanOut("sorted_search", func(i int, sub Searchable) error {
		docs, err := sub.SearchWeightSorted(w, filter, n, sort)
		if err != nil {
			return err
		}
		mu.Lock()
		err = fq.SetFields(docs.Fields)
		mu.Unlock()
		if err != nil {
			return err
		}
		results[i] = docs
		mergeFieldDocs(fq, docs, s.starts[i], &mu)
		return nil
	})
	if err != nil {
		return nil, err
	}
	total := 0
	var maxScore float32
	for _, docs := range results {
		total += docs.TotalHits
		maxScore = max(maxScore, docs.MaxScore)
	}
	return &TopFieldDocs{
		TotalHits: total,
		ScoreDocs: fq.Drain(),
		Fields:    fq.Fields(),
		MaxScore:  maxScore,
	}, nil
}
