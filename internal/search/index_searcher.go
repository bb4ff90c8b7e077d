package search

import (
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/explain"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/logger"
)

// IndexSearcher searches a single reader. It is safe for concurrent use as
// long as the reader is.
type IndexSearcher struct {
	reader index.Reader
	sim    similarity.Similarity
	caches *CacheContext
	log    *slog.Logger
}

type Option func(*IndexSearcher)

func WithSimilarity(sim similarity.Similarity) Option {
	return func(s *IndexSearcher) { s.sim = sim }
}

// WithCacheContext shares field and comparator caches between searchers.
func WithCacheContext(c *CacheContext) Option {
	return func(s *IndexSearcher) { s.caches = c }
}

func NewIndexSearcher(r index.Reader, opts ...Option) (*IndexSearcher, error) {
	s := newBareSearcher(r)
	for _, opt := range opts {
		opt(s)
	}
	if s.caches == nil {
		caches, err := NewCacheContext(DefaultFieldCacheSize, DefaultComparatorCacheSize)
		if err != nil {
			return nil, err
		}
		s.caches = caches
	}
	return s, nil
}

// newBareSearcher returns a searcher without caches, for unsorted searches
// made on behalf of another component.
func newBareSearcher(r index.Reader) *IndexSearcher {
	return &IndexSearcher{
		reader: r,
		sim:    similarity.Default(),
		log:    logger.WithComponent("index-searcher"),
	}
}

func (s *IndexSearcher) Reader() index.Reader { return s.reader }

func (s *IndexSearcher) Caches() *CacheContext { return s.caches }

func (s *IndexSearcher) Similarity() similarity.Similarity { return s.sim }

func (s *IndexSearcher) MaxDoc() uint32 { return s.reader.MaxDoc() }

func (s *IndexSearcher) DocFreq(t index.Term) (uint32, error) {
	return s.reader.DocFreq(t)
}

func (s *IndexSearcher) Doc(doc uint32) (*index.Document, error) {
	return s.reader.Document(doc)
}

// Rewrite rewrites q until it no longer changes.
func (s *IndexSearcher) Rewrite(q Query) (Query, error) {
	for {
		rewritten, err := q.Rewrite(s.reader)
		if err != nil {
			return nil, err
		}
		if rewritten == q {
			return q, nil
		}
		q = rewritten
	}
}

func (s *IndexSearcher) CreateWeight(q Query) (Weight, error) {
	return BuildWeight(q, s)
}

// Search returns the n best hits of q among the documents filter admits.
// filter may be nil.
func (s *IndexSearcher) Search(q Query, filter Filter, n int) (*TopDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeight(w, filter, n)
}

// SearchSorted returns the first n hits of q in sort order.
func (s *IndexSearcher) SearchSorted(q Query, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.SearchWeightSorted(w, filter, n, sort)
}

// Collect hands every admitted hit of q to c, in doc order.
func (s *IndexSearcher) Collect(q Query, filter Filter, c HitCollector) error {
	w, err := s.CreateWeight(q)
	if err != nil {
		return err
	}
	return s.CollectWeight(w, filter, c)
}

func (s *IndexSearcher) Explain(q Query, doc uint32) (*explain.Explanation, error) {
	w, err := s.CreateWeight(q)
	if err != nil {
		return nil, err
	}
	return s.ExplainWeight(w, doc)
}

func (s *IndexSearcher) SearchWeight(w Weight, filter Filter, n int) (*TopDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	hq := NewHitQueue(n)
	total, err := s.score(w, filter, func(doc uint32, score float32) {
		hq.Insert(ScoreDoc{Doc: doc, Score: score})
	})
	if err != nil {
		return nil, err
	}
	docs := &TopDocs{TotalHits: total, ScoreDocs: hq.Drain()}
	if len(docs.ScoreDocs) > 0 {
		docs.MaxScore = docs.ScoreDocs[0].Score
	}
	s.log.Debug("search completed",
		"query", w.Query().String(""),
		"total_hits", total,
		"returned", len(docs.ScoreDocs),
	)
	return docs, nil
}

// SearchWeightSorted is SearchWeight ordered by sort. A nil sort means
// Relevance.
func (s *IndexSearcher) SearchWeightSorted(w Weight, filter Filter, n int, sort *Sort) (*TopFieldDocs, error) {
	if n <= 0 {
		return nil, argError("n", "must be positive, got %d", n)
	}
	if sort == nil {
		sort = Relevance
	}
	if s.caches == nil {
		return nil, fmt.Errorf("sorted search without a cache context: %w", apperrors.ErrInternal)
	}
	fq, err := NewFieldSortedHitQueue(s.caches, s.reader, sort.fields, n)
	if err != nil {
		return nil, err
	}
	total, err := s.score(w, filter, func(doc uint32, score float32) {
		fq.Insert(ScoreDoc{Doc: doc, Score: score})
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("sorted search completed",
		"query", w.Query().String(""),
		"sort", sort.String(),
		"total_hits", total,
	)
	return &TopFieldDocs{
		TotalHits: total,
		ScoreDocs: fq.Drain(),
		Fields:    fq.Fields(),
		MaxScore:  fq.MaxScore(),
	}, nil
}

func (s *IndexSearcher) CollectWeight(w Weight, filter Filter, c HitCollector) error {
	_, err := s.score(w, filter, c.Collect)
	return err
}

// score drains the scorer of w, handing admitted positive hits to collect.
// It returns how many hits were handed over.
func (s *IndexSearcher) score(w Weight, filter Filter, collect func(doc uint32, score float32)) (int, error) {
	var bits *roaring.Bitmap
	if filter != nil {
		var err error
		if bits, err = filter.Bits(s.reader); err != nil {
			return 0, fmt.Errorf("filter %s: %w", filter, err)
		}
	}
	scorer, err := w.Scorer(s.reader)
	if err != nil {
		return 0, err
	}
	total := 0
	err = scoreAll(scorer, func(doc uint32, score float32) {
		if bits != nil && !bits.Contains(doc) {
			return
		}
		total++
		collect(doc, score)
	})
	if err != nil {
		return 0, fmt.Errorf("scoring %s: %w", w.Query().String(""), err)
	}
	return total, nil
}

func (s *IndexSearcher) ExplainWeight(w Weight, doc uint32) (*explain.Explanation, error) {
	if doc >= s.reader.MaxDoc() {
		return nil, fmt.Errorf("doc %d of %d: %w", doc, s.reader.MaxDoc(), apperrors.ErrNotFound)
	}
	return w.Explain(s.reader, doc)
}

// Close drops the cache entries of the reader and closes it.
func (s *IndexSearcher) Close() error {
	if s.caches != nil {
		s.caches.Purge(s.reader.ID())
	}
	return s.reader.Close()
}
