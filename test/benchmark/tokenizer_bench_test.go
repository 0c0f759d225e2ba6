package benchmark

import (
	"strings"
	"testing"

	"github.com/lucid-search/lucid/internal/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Full text search engines process queries against an inverted
        index built from tokenized document fields. Each posting list maps a
        term to the documents containing it, along with term frequency used
        by BM25 ranking. Stemming and stop-word removal normalize text into
        searchable terms before insertion into the radix tree.`,
	"long": strings.Repeat(`Information retrieval systems combine tokenization,
        stemming, and stop word removal to normalize text into searchable
        terms. An inverted index maps each term to the documents containing
        it. BM25 ranking considers term frequency, document length
        normalization, and inverse document frequency to produce relevance
        scores. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	tok, err := tokenizer.New(tokenizer.Config{Language: tokenizer.English})
	if err != nil {
		b.Fatal(err)
	}
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				tokens, err := tok.Tokenize(text, tokenizer.English, "body")
				if err != nil {
					b.Fatal(err)
				}
				_ = tokens
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	tok, err := tokenizer.New(tokenizer.Config{Language: tokenizer.English})
	if err != nil {
		b.Fatal(err)
	}
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens, err := tok.Tokenize(text, tokenizer.English, "body")
			if err != nil {
				b.Fatal(err)
			}
			_ = tokens
		}
	})
}
