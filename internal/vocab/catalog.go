package vocab

import (
	"sort"
	"strings"

	"namaste-icd-mapper/models"
)

// Catalog is an immutable, indexed view over the AYUSH entries.
type Catalog struct {
	entries    []models.AyushCode
	haystacks  []string
	byCode     map[string]int
	categories []string
}

func NewCatalog(entries []models.AyushCode) *Catalog {
	c := &Catalog{
		entries:   entries,
		haystacks: make([]string, len(entries)),
		byCode:    make(map[string]int, len(entries)),
	}
	seen := make(map[string]struct{})
	for i, e := range entries {
		c.haystacks[i] = strings.ToLower(strings.Join([]string{
			e.Name, e.NameEnglish, e.NameDiacritical, e.Description, e.Code,
		}, " "))
		if _, dup := c.byCode[e.Code]; !dup {
			c.byCode[e.Code] = i
		}
		if e.Category != "" {
			if _, ok := seen[e.Category]; !ok {
				seen[e.Category] = struct{}{}
				c.categories = append(c.categories, e.Category)
			}
		}
	}
	sort.Strings(c.categories)
	return c
}

func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns the backing slice; callers must not modify it.
func (c *Catalog) Entries() []models.AyushCode { return c.entries }

// Search does a case-insensitive substring match over name, English name,
// diacritical name, description and code, with an optional exact category
// filter. Total counts matches before pagination.
func (c *Catalog) Search(query, category string, limit, offset int) models.AyushSearchResponse {
	q := strings.ToLower(query)
	var matched []int
	for i, e := range c.entries {
		if category != "" && e.Category != category {
			continue
		}
		if strings.Contains(c.haystacks[i], q) {
			matched = append(matched, i)
		}
	}

	total := len(matched)
	results := []models.AyushCode{}
	if offset < total {
		end := min(offset+limit, total)
		for _, i := range matched[offset:end] {
			results = append(results, c.entries[i])
		}
	}

	return models.AyushSearchResponse{
		Results: results,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

// Get returns the first entry with the given code.
func (c *Catalog) Get(code string) (models.AyushCode, bool) {
	i, ok := c.byCode[code]
	if !ok {
		return models.AyushCode{}, false
	}
	return c.entries[i], true
}

// Categories returns distinct non-empty categories in lexicographic order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}
