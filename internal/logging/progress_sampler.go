package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the prompt or percentage bucket changes.
type ProgressSampler struct {
	bucketSize float64
	lastPrompt string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the prompt changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress update for prompt at percent (0-100)
// should be logged. Negative percents never advance the bucket.
func (s *ProgressSampler) ShouldLog(percent float64, prompt string) bool {
	if s == nil {
		return true
	}
	prompt = strings.TrimSpace(prompt)
	emit := false
	if prompt != s.lastPrompt {
		s.lastPrompt = prompt
		s.lastBucket = -1
		emit = true
	}
	if percent >= 0 {
		bucket := int(min(percent, 100) / s.bucketSize)
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state, for example when a job finishes.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPrompt = ""
	s.lastBucket = -1
}
