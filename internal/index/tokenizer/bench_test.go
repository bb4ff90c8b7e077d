package tokenizer_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/index/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Distributed search engines process queries across multiple shards to achieve
        horizontal scalability. Each shard maintains its own inverted index and responds
        to queries independently. Results are merged using a global ranking algorithm
        that accounts for term frequency and inverse document frequency across the
        entire corpus.`,
	"long": strings.Repeat(`Information retrieval systems form the backbone of modern search
        infrastructure. The inverted index maps each term to the documents containing it,
        along with positional information for phrase queries. Scores combine term
        frequency, field length normalization and inverse document frequency. `, 20),
}

var analyzers = []tokenizer.Analyzer{tokenizer.Simple{}, tokenizer.English{}}

func BenchmarkTokenize(b *testing.B) {
	for _, a := range analyzers {
		for name, text := range sampleTexts {
			b.Run(a.Name()+"/"+name, func(b *testing.B) {
				b.ReportAllocs()
				b.SetBytes(int64(len(text)))
				for i := 0; i < b.N; i++ {
					tokens := a.Tokenize(text)
					_ = tokens
				}
			})
		}
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		var a tokenizer.English
		for pb.Next() {
			tokens := a.Tokenize(text)
			_ = tokens
		}
	})
}

func BenchmarkStemming(b *testing.B) {
	words := []string{
		"running", "distributed", "searching", "indexing",
		"tokenization", "normalization", "efficiently",
		"processing", "infrastructure", "scalability",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			stem := tokenizer.Stem(w)
			_ = stem
		}
	}
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{10, 100, 500, 1000, 5000}
	baseWord := "distributed search analytics platform indexing "
	for _, size := range sizes {
		text := strings.Repeat(baseWord, size/len(baseWord)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			var a tokenizer.Simple
			for i := 0; i < b.N; i++ {
				tokens := a.Tokenize(text)
				_ = tokens
			}
		})
	}
}
