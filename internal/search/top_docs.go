package search

// ScoreDoc is a hit. Hits are ordered by descending score, then by ascending
// doc id.
type ScoreDoc struct {
	Doc   uint32  `json:"doc"`
	Score float32 `json:"score"`
}

// FieldDoc is a hit of a sorted search. Fields holds one sort value per sort
// key: float32 for SCORE and FLOAT, uint32 for DOC, int32 for INT, string
// for STRING and whatever a custom comparator produces for CUSTOM.
type FieldDoc struct {
	ScoreDoc
	Fields []any `json:"fields"`
}

// TopDocs is the result of a relevance search. MaxScore is the score of the
// first hit, or 0 when there are none.
type TopDocs struct {
	TotalHits int        `json:"total_hits"`
	ScoreDocs []ScoreDoc `json:"hits"`
	MaxScore  float32    `json:"max_score"`
}

// TopFieldDocs is the result of a sorted search. Fields are the sort keys
// with AUTO resolved to the concrete type that was used.
type TopFieldDocs struct {
	TotalHits int         `json:"total_hits"`
	ScoreDocs []FieldDoc  `json:"hits"`
	Fields    []SortField `json:"sort"`
	MaxScore  float32     `json:"max_score"`
}

// HitCollector receives every admitted document with a positive score.
type HitCollector interface {
	Collect(doc uint32, score float32)
}

// HitCollectorFunc adapts a function to HitCollector.
type HitCollectorFunc func(doc uint32, score float32)

func (f HitCollectorFunc) Collect(doc uint32, score float32) { f(doc, score) }
