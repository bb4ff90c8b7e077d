package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventCacheHit   EventType = "cache_hit"
	EventZeroResult EventType = "zero_result"
	EventError      EventType = "search_error"
)

// SearchEvent describes one request served by the search handler.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Kind       string    `json:"kind"`
	Query      string    `json:"query"`
	Sort       string    `json:"sort,omitempty"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	MaxScore   float32   `json:"max_score"`
	LatencyMs  int64     `json:"latency_ms"`
	CacheHit   bool      `json:"cache_hit"`
	ShardCount int       `json:"shard_count"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

// Classify picks the event type from the outcome fields.
func (e *SearchEvent) Classify() {
	switch {
	case e.Error != "":
		e.Type = EventError
	case e.CacheHit:
		e.Type = EventCacheHit
	case e.TotalHits == 0:
		e.Type = EventZeroResult
	default:
		e.Type = EventSearch
	}
}
