package textutil

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

var caseFolder = cases.Fold()

// Terms folds accents and case, then splits text on anything that is not a
// letter or digit. Single characters are dropped; prompts are short, so
// two-letter words like "lo" in "lo fi" still count.
func Terms(text string) []string {
	folded := caseFolder.String(Fold(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return slices.DeleteFunc(fields, func(term string) bool {
		return utf8.RuneCountInString(term) < 2
	})
}

// Vector is a sparse term vector over one prompt.
type Vector struct {
	weights map[string]float64
	length  float64
}

func termCounts(text string) map[string]float64 {
	terms := Terms(text)
	if len(terms) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(terms))
	for _, term := range terms {
		counts[term]++
	}
	return counts
}

func newVector(weights map[string]float64) *Vector {
	var sum float64
	for term, w := range weights {
		if w == 0 {
			delete(weights, term)
			continue
		}
		sum += w * w
	}
	if len(weights) == 0 {
		return nil
	}
	return &Vector{weights: weights, length: math.Sqrt(sum)}
}

// CountVector weights every term of text by how often it occurs.
func CountVector(text string) *Vector {
	return newVector(termCounts(text))
}

// Terms reports how many distinct terms v holds.
func (v *Vector) Terms() int {
	if v == nil {
		return 0
	}
	return len(v.weights)
}

// Cosine returns the cosine of the angle between a and b, or 0 when either
// is empty.
func Cosine(a, b *Vector) float64 {
	if a == nil || b == nil {
		return 0
	}
	if len(b.weights) < len(a.weights) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a.weights {
		dot += w * b.weights[term]
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.length * b.length)
}

// PromptIndex scores queries against a fixed list of prompts, weighting
// each term by how rare it is among them.
type PromptIndex struct {
	counts []map[string]float64
	idf    map[string]float64
}

// NewPromptIndex indexes prompts. Prompts without any terms are kept so
// indices line up but never match and do not count towards rarity.
func NewPromptIndex(prompts []string) *PromptIndex {
	ix := &PromptIndex{
		counts: make([]map[string]float64, len(prompts)),
		idf:    make(map[string]float64),
	}
	docs := 0
	seen := make(map[string]int)
	for i, prompt := range prompts {
		counts := termCounts(prompt)
		ix.counts[i] = counts
		if counts == nil {
			continue
		}
		docs++
		for term := range counts {
			seen[term]++
		}
	}
	// Smoothed so a term shared by every prompt keeps weight 1 and a
	// one-prompt history still matches itself.
	n := float64(docs)
	for term, df := range seen {
		ix.idf[term] = 1 + math.Log((n+1)/(1+float64(df)))
	}
	return ix
}

// Weight returns the rarity weight of term, 1 for terms the index has not
// seen.
func (ix *PromptIndex) Weight(term string) float64 {
	if w, ok := ix.idf[term]; ok {
		return w
	}
	return 1
}

func (ix *PromptIndex) weigh(counts map[string]float64) *Vector {
	if counts == nil {
		return nil
	}
	weights := make(map[string]float64, len(counts))
	for term, count := range counts {
		weights[term] = count * ix.Weight(term)
	}
	return newVector(weights)
}

// Ranked is one prompt scored against a query.
type Ranked struct {
	Index int
	Score float64
}

// Rank returns the prompts scoring at or above threshold against query,
// best first. Ties keep prompt order.
func (ix *PromptIndex) Rank(query string, threshold float64) []Ranked {
	q := ix.weigh(termCounts(query))
	if q == nil {
		return nil
	}
	var out []Ranked
	for i, counts := range ix.counts {
		score := Cosine(q, ix.weigh(counts))
		if score > 0 && score >= threshold {
			out = append(out, Ranked{Index: i, Score: score})
		}
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return out
}

// Rank indexes candidates and ranks them against query in one step.
func Rank(query string, candidates []string, threshold float64) []Ranked {
	return NewPromptIndex(candidates).Rank(query, threshold)
}
