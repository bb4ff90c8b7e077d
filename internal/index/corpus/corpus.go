// Package corpus loads a JSON-lines document corpus into in-memory index
// shards. Each document is routed to a shard by hashing its id, so the same
// corpus always produces the same shard layout.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/memory"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/search-core/internal/search/similarity"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

// IDField is the stored, untokenized field every loaded document carries.
const IDField = "id"

// Options controls how documents are indexed.
type Options struct {
	NumShards     int
	Analyzer      tokenizer.Analyzer
	KeywordFields []string
	Similarity    similarity.Similarity
}

// Record is one line of the corpus file.
type Record struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// Shards is the result of a load: one reader per shard plus the number of
// documents each received.
type Shards struct {
	Readers []*memory.Reader
	Counts  []int
}

// ShardFor returns the shard a document id is routed to.
func ShardFor(id string, numShards int) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % uint32(numShards))
}

// Load reads the corpus at path.
func Load(path string, opts Options) (*Shards, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	defer f.Close()
	shards, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("loading corpus %s: %w", path, err)
	}
	return shards, nil
}

// Read indexes every record read from r.
func Read(r io.Reader, opts Options) (*Shards, error) {
	if opts.NumShards < 1 {
		return nil, fmt.Errorf("numShards must be at least 1, got %d: %w", opts.NumShards, apperrors.ErrInvalidInput)
	}
	logger := slog.Default().With("component", "corpus-loader")

	keyword := make(map[string]struct{}, len(opts.KeywordFields))
	for _, name := range opts.KeywordFields {
		keyword[name] = struct{}{}
	}
	builders := make([]*memory.Builder, opts.NumShards)
	for i := range builders {
		builders[i] = memory.NewBuilder(opts.Analyzer, opts.Similarity)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := Validate(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		shard := ShardFor(rec.ID, opts.NumShards)
		builders[shard].Add(fieldsOf(rec, keyword)...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", line+1, err)
	}

	out := &Shards{
		Readers: make([]*memory.Reader, opts.NumShards),
		Counts:  make([]int, opts.NumShards),
	}
	for i, b := range builders {
		out.Readers[i] = b.Build()
		out.Counts[i] = b.NumDocs()
		logger.Info("shard built",
			"shard_id", i,
			"docs", out.Counts[i],
		)
	}
	logger.Info("corpus loaded", "num_shards", opts.NumShards, "lines", line)
	return out, nil
}

// Close closes every shard reader and returns the first error.
func (s *Shards) Close() error {
	var firstErr error
	for _, r := range s.Readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func fieldsOf(rec Record, keyword map[string]struct{}) []memory.Field {
	names := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		if name != IDField {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	fields := make([]memory.Field, 0, len(names)+1)
	fields = append(fields, memory.Keyword(IDField, rec.ID))
	for _, name := range names {
		if _, ok := keyword[name]; ok {
			fields = append(fields, memory.Keyword(name, rec.Fields[name]))
		} else {
			fields = append(fields, memory.Text(name, rec.Fields[name]))
		}
	}
	return fields
}
