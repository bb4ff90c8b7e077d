package search

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
)

// MultiSearcher searches several searchables one after the other as if
// they formed one index. Doc ids of searchable i are shifted by the number
// of docs of the searchables before it.
type MultiSearcher struct {
	searchables []Searchable
	starts      []uint32
	sim         similarity.Similarity
	log         *slog.Logger
}

// NewMultiSearcher uses the similarity of the first searchable.
func NewMultiSearcher(searchables ...Searchable) (*MultiSearcher, error) {
	return newMultiSearcher("multi-searcher", searchables)
}

func newMultiSearcher(component string, searchables []Searchable) (*MultiSearcher, error) {
	if len(searchables) == 0 {
		return nil, argError("searchables", "at least one is required")
	}
	starts := make([]uint32, len(searchables)+1)
	for i, sub := range searchables {
		starts[i+1] = starts[i] + sub.MaxDoc()
	}
	return &MultiSearcher{
		searchables: searchables,
		starts:      starts,
		sim:         searchables[0].Similarity(),
		log:         logger.WithComponent(component),
	}, nil
}

func (s *MultiSearcher) Searchables() []Searchable { return s.searchables }

// Starts returns the first global doc id of each searchable.
func (s *MultiSearcher) Starts() []uint32 { return s.starts[:len(s.searchables)] }

// SubSearcher returns the index of the searchable holding a global doc id.
func (s *MultiSearcher) SubSearcher(doc uint32) int {
	return sort.Search(len(s.searchables), func(i int) bool { return s.starts[i+1] > doc })
}

// SubDoc translates a global doc id into the id of its searchable.
func (s *MultiSearcher) SubDoc(doc uint32) uint32 {
	return doc - s.starts[s.SubSearcher(doc)]
}

func (s *MultiSearcher) locate(doc uint32) (int, uint32, error) {
	if doc >= s.MaxDoc() {
		return 0, 0, fmt.Errorf("doc %d of %d: %w", doc, s.MaxDoc(), apperrors.ErrNotFound)
	}
	i := s.SubSearcher(doc)
	return i, doc - s.starts[i], nil
}

func (s *MultiSearcher) Similarity() similarity.Similarity { return s.sim }

func (s *MultiSearcher) MaxDoc() uint32 { return s.starts[len(s.searchables)] }

func (s *MultiSearcher) DocFreq(t index.Term) (uint32, error) {
	var df uint32
	for i, sub := range s.searchables {
		n, err := sub.DocFreq(t)
		if err != nil {
			return 0, fmt.Errorf("doc freq on searchable %d: %w", i, err)
		}
		df += n
	}
	return df, nil
}

func (s *MultiSearcher) Doc(doc uint32) (*index.Document, error) {
	i, local, err := s.locate(doc)
	if err != nil {
		return nil, err
	}
	return s.searchables[i].Doc(local)
}

// Rewrite rewrites q against every searchable and combines the distinct
// results.
func (s *MultiSearcher) Rewrite(q Query) (Query, error) {
	queries := make([]Query, len(s.searchables))
	for i, sub := range s.searchables {
		rewritten, err := sub.Rewrite(q)
		if err != nil {
			return nil, err
		}
		queries[i] = rewritten
	}
	return Combine(queries)
}

// CreateWeight builds the weight of q from document frequencies summed over
// every searchable, so that scores match those of a single merged index.
func (s *MultiSearcher) CreateWeight(q Query) (Weight, error) {
	rewritten, err := s.Rewrite(q)
	if err != nil {
		return nil, err
	}
	terms := make(map[index.Term]struct{})
	rewritten.ExtractTerms(terms)
	dfs := make(map[index.Term]uint32, len(terms))
	for t := range terms {
		df, err := s.DocFreq(t)
		if err != nil {
			return nil, err
		}
		dfs[t] = df
	}
	source := &cachedDfSource{dfs: dfs, maxDoc: s.MaxDoc(), sim: s.sim}
	w, err := rewritten.CreateWeight(source)
	if err != nil {
		return nil, err
	}
	w.Normalize(s.sim.QueryNorm(w.SumOfSquaredWeights()))
	return w, nil
}

func (s *MultiSearcher) Search(q Query, filter Filter, n int) (*TopDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeight(w, filter, n)
}

func (s *MultiSearcher) SearchSorted(q Query, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeightSorted(w, filter, n, sort)
}

func (s *MultiSearcher) Collect(q Query, filter Filter, c HitCollector) error {
	w, err := s.CreateWeight(q)
	if err != nil {
		return err
	}
	return s.CollectWeight(w, filter, c)
}

func (s *MultiSearcher) Explain(q Query, doc uint32) (*explain.Explanation, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.ExplainWeight(w, doc)
}

func (s *MultiSearcher) SearchWeight(w Weight, filter Filter, n int) (*TopDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	hq := NewHitQueue(n)
	total := 0
	for i, sub := range s.searchables {
		docs, err := sub.SearchWeight(w, filter, n)
		if err != nil {
			return nil, fmt.Errorf("searching searchable %d: %w", i, err)
		}
		total += docs.TotalHits
		mergeHits(hq, docs.ScoreDocs, s.starts[i], noLock{})
	}
	return topDocsFrom(hq, total), nil
}

func (s *MultiSearcher) SearchWeightSorted(w Weight, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	fq := NewFieldDocSortedHitQueue(n)
	total := 0
	var maxScore float32
	for i, sub := range s.searchables {
		docs, err := sub.SearchWeightSorted(w, filter, n, sort)
		if err != nil {
			return nil, fmt.Errorf("searching searchable %d: %w", i, err)
		}
		if err := fq.SetFields(docs.Fields); err != nil {
			return nil, fmt.Errorf("searchable %d: %w", i, err)
		}
		total += docs.TotalHits
		maxScore = max(maxScore, docs.MaxScore)
		mergeFieldDocs(fq, docs, s.starts[i], noLock{})
	}
	return &TopFieldDocs{
		TotalHits: total,
		ScoreDocs: fq.Drain(),
		Fields:    fq.Fields(),
		MaxScore:  maxScore,
	}, nil
}

// CollectWeight runs the searchables one at a time, so c need not be safe
// for concurrent use.
func (s *MultiSearcher) CollectWeight(w Weight, filter Filter, c HitCollector) error {
	for i, sub := range s.searchables {
		start := s.starts[i]
		err := sub.CollectWeight(w, filter, HitCollectorFunc(func(doc uint32, score float32) {
			c.Collect(doc+start, score)
		}))
		if err != nil {
			return fmt.Errorf("collecting from searchable %d: %w", i, err)
		}
	}
	return nil
}

func (s *MultiSearcher) ExplainWeight(w Weight, doc uint32) (*explain.Explanation, error) {
	i, local, err := s.locate(doc)
	if err != nil {
		return nil, err
	}
	return s.searchables[i].ExplainWeight(w, local)
}

func (s *MultiSearcher) Close() error {
	var errs []error
	for i, sub := range s.searchables {
		if err := sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing searchable %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// mergeHits inserts hits shifted by start until one is rejected; the rest
// rank lower still. mu guards each insert.
func mergeHits(hq *HitQueue, hits []ScoreDoc, start uint32, mu sync.Locker) {
	for _, sd := range hits {
		sd.Doc += start
		mu.Lock()
		kept := hq.Insert(sd)
		mu.Unlock()
		if !kept {
			return
		}
	}
}

// mergeFieldDocs is mergeHits for sorted results. DOC sort values are
// shifted along with the doc ids.
func mergeFieldDocs(fq *FieldDocSortedHitQueue, docs *TopFieldDocs, start uint32, mu sync.Locker) {
	for _, fd := range docs.ScoreDocs {
		fd.Doc += start
		fd.Fields = append([]any(nil), fd.Fields...)
		for j, f := range docs.Fields {
			if f.Type == SortDoc {
				fd.Fields[j] = fd.Fields[j].(uint32) + start
			}
		}
		mu.Lock()
		kept := fq.Insert(fd)
		mu.Unlock()
		if !kept {
			return
		}
	}
}

// noLock is the sync.Locker of sequential merges.
type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func topDocsFrom(hq *HitQueue, total int) *TopDocs {
	docs := &TopDocs{TotalHits: total, ScoreDocs: hq.Drain()}
	if len(docs.ScoreDocs) > 0 {
		docs.MaxScore = docs.ScoreDocs[0].Score
	}
	return docs
}

// cachedDfSource is the Searcher a MultiSearcher hands to CreateWeight. It
// only knows the document frequencies of the terms of one query.
type cachedDfSource struct {
	dfs    map[index.Term]uint32
	maxDoc uint32
	sim    similarity.Similarity
}

func (c *cachedDfSource) DocFreq(t index.Term) (uint32, error) {
	df, ok := c.dfs[t]
	if !ok {
		return 0, fmt.Errorf("doc freq of %s was not collected: %w", t, apperrors.ErrInternal)
	}
	return df, nil
}

func (c *cachedDfSource) MaxDoc() uint32                    { return c.maxDoc }
func (c *cachedDfSource) Similarity() similarity.Similarity { return c.sim }
func (c *cachedDfSource) Rewrite(q Query) (Query, error)    { return q, nil }
