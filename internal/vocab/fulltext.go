package vocab

import (
	"fmt"
	"strconv"

	"namaste-icd-mapper/models"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// FullTextIndex is an in-memory bleve index over the AYUSH entries, used for
// typo-tolerant lookups.
type FullTextIndex struct {
	index   bleve.Index
	entries []models.AyushCode
}

func buildIndexMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()
	for _, field := range []string{"code", "name", "name_english", "name_diacritical", "description"} {
		doc.AddFieldMappingsAt(field, bleve.NewTextFieldMapping())
	}

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping("_default", doc)
	return im
}

// NewFullTextIndex indexes entries by position, so duplicate codes are kept.
func NewFullTextIndex(entries []models.AyushCode) (*FullTextIndex, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := index.NewBatch()
	for i, e := range entries {
		doc := map[string]interface{}{
			"code":             e.Code,
			"name":             e.Name,
			"name_english":     e.NameEnglish,
			"name_diacritical": e.NameDiacritical,
			"description":      e.Description,
		}
		if err := batch.Index(strconv.Itoa(i), doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to index %s: %w", e.Code, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to batch index vocabulary: %w", err)
	}

	return &FullTextIndex{index: index, entries: entries}, nil
}

// Search runs a match query with edit distance 1 and returns scored hits.
func (f *FullTextIndex) Search(query string, limit int) (models.FuzzySearchResponse, error) {
	q := bleve.NewMatchQuery(query)
	q.SetFuzziness(1)

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := f.index.Search(req)
	if err != nil {
		return models.FuzzySearchResponse{}, fmt.Errorf("fuzzy search: %w", err)
	}

	hits := make([]models.FuzzyHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		i, err := strconv.Atoi(h.ID)
		if err != nil || i < 0 || i >= len(f.entries) {
			continue
		}
		hits = append(hits, models.FuzzyHit{
			Code:  f.entries[i].Code,
			Name:  f.entries[i].Name,
			Score: h.Score,
		})
	}
	return models.FuzzySearchResponse{Results: hits, Total: res.Total}, nil
}

func (f *FullTextIndex) Close() error {
	return f.index.Close()
}
