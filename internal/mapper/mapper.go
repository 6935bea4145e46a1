// Package mapper ranks classification entries against a query vector and
// turns the ranking into confidence-tiered suggestions.
package mapper

import (
	"fmt"
	"sync/atomic"

	"namaste-icd-mapper/models"
)

type loaded struct {
	corpus  *Corpus
	entries []models.ICDCode
}

// SimilarityMapper holds the ICD corpus. LoadCorpus replaces it atomically;
// concurrent Rank calls see either the old or the new corpus, never a mix.
type SimilarityMapper struct {
	thresholds Thresholds
	state      atomic.Pointer[loaded]
}

func NewSimilarityMapper(thresholds Thresholds) *SimilarityMapper {
	return &SimilarityMapper{thresholds: thresholds}
}

func (m *SimilarityMapper) LoadCorpus(vectors [][]float32, entries []models.ICDCode) error {
	if len(vectors) != len(entries) {
		return fmt.Errorf("%w: %d vectors for %d entries", ErrCorpusMismatch, len(vectors), len(entries))
	}
	corpus, err := NewCorpus(vectors)
	if err != nil {
		return err
	}
	cp := make([]models.ICDCode, len(entries))
	copy(cp, entries)
	m.state.Store(&loaded{corpus: corpus, entries: cp})
	return nil
}

func (m *SimilarityMapper) IsLoaded() bool {
	return m.state.Load() != nil
}

func (m *SimilarityMapper) Size() int {
	if s := m.state.Load(); s != nil {
		return s.corpus.Size()
	}
	return 0
}

func (m *SimilarityMapper) Thresholds() Thresholds {
	return m.thresholds
}

func (m *SimilarityMapper) ConfidenceLevel(score float64) Level {
	return m.thresholds.Level(score)
}

func (m *SimilarityMapper) Rank(q []float32, k int) ([]Match, error) {
	s := m.state.Load()
	if s == nil {
		return nil, ErrCorpusNotLoaded
	}
	return s.corpus.Rank(q, k)
}

// BuildSuggestions ranks q and decorates the top k with entry fields,
// a 4-place display confidence and the tier of the unrounded score.
func (m *SimilarityMapper) BuildSuggestions(q []float32, k int) ([]models.Suggestion, error) {
	s := m.state.Load()
	if s == nil {
		return nil, ErrCorpusNotLoaded
	}
	matches, err := s.corpus.Rank(q, k)
	if err != nil {
		return nil, err
	}

	out := make([]models.Suggestion, len(matches))
	for i, match := range matches {
		e := s.entries[match.Index]
		out[i] = models.Suggestion{
			ICDCode:         e.Code,
			DiseaseName:     e.Name,
			Description:     e.Description,
			Chapter:         e.Chapter,
			Confidence:      DisplayScore(match.Score, 4),
			ConfidenceLevel: string(m.thresholds.Level(match.Score)),
		}
	}
	return out, nil
}
