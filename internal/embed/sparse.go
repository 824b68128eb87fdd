package embed

import (
	"hash/fnv"
	"regexp"
	"strings"
)

var termRe = regexp.MustCompile(`[a-z0-9]+`)

// k1 controls BM25-style term frequency saturation.
const k1 = 1.2

// SparseEncoder produces BM25-style sparse vectors from text. Terms
// are lowercased, hashed to stable 32-bit indices, and weighted by
// saturated term frequency; corpus-level IDF is applied by the store.
// Encoding identical text always yields the same vector.
type SparseEncoder struct{}

// NewSparseEncoder creates a SparseEncoder.
func NewSparseEncoder() *SparseEncoder {
	return &SparseEncoder{}
}

// Encode converts text into a sparse vector. Empty or term-free text
// yields an empty vector.
func (s *SparseEncoder) Encode(text string) SparseVector {
	terms := termRe.FindAllString(strings.ToLower(text), -1)
	if len(terms) == 0 {
		return SparseVector{}
	}

	freq := make(map[uint32]float32, len(terms))
	for _, term := range terms {
		if len(term) < 2 {
			continue
		}
		freq[termIndex(term)]++
	}

	sv := SparseVector{
		Indices: make([]uint32, 0, len(freq)),
		Values:  make([]float32, 0, len(freq)),
	}
	for idx, tf := range freq {
		sv.Indices = append(sv.Indices, idx)
		sv.Values = append(sv.Values, tf*(k1+1)/(tf+k1))
	}
	return sv
}

// EncodeBatch encodes each text in input order.
func (s *SparseEncoder) EncodeBatch(texts []string) []SparseVector {
	out := make([]SparseVector, len(texts))
	for i, t := range texts {
		out[i] = s.Encode(t)
	}
	return out
}

// termIndex hashes a term to its stable sparse dimension.
func termIndex(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}
