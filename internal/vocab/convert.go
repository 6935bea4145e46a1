package vocab

import (
	"fmt"
	"sort"
	"strings"

	"namaste-icd-mapper/models"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

// Spreadsheet column headers of the national morbidity code workbook.
const (
	colCode            = "NAMC_CODE"
	colID              = "NAMC_ID"
	colTerm            = "NAMC_term"
	colTermDiacritical = "NAMC_term_diacritical"
	colTermDevanagari  = "NAMC_term_DEVANAGARI"
	colShortDef        = "Short_definition"
	colLongDef         = "Long_definition"
	colOntology        = "Ontology_branches"
	colNameEnglish     = "Name English"
	colNameEnglishIdx  = "Name English Under Index"
)

// ConversionStats summarizes one spreadsheet conversion.
type ConversionStats struct {
	Rows       int
	Converted  int
	Skipped    int
	Categories map[string]int
}

// SortedCategories returns categories by descending count, then name.
func (s ConversionStats) SortedCategories() []string {
	out := make([]string, 0, len(s.Categories))
	for c := range s.Categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if s.Categories[out[i]] != s.Categories[out[j]] {
			return s.Categories[out[i]] > s.Categories[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"vata", "Vata Disorders"},
	{"pitta", "Pitta Disorders"},
	{"kapha", "Kapha Disorders"},
	{"digestive", "Digestive"},
	{"respiratory", "Respiratory"},
	{"metabolic", "Metabolic"},
	{"musculoskeletal", "Musculoskeletal"},
	{"cardiovascular", "Cardiovascular"},
	{"neurological", "Neurological"},
}

// CategoryFromOntology maps an ontology branch string to a browse category;
// the first matching keyword wins.
func CategoryFromOntology(ontology string) string {
	lower := strings.ToLower(ontology)
	for _, k := range categoryKeywords {
		if strings.Contains(lower, k.keyword) {
			return k.category
		}
	}
	return "General"
}

// CleanCell NFKC-normalises a cell, collapses whitespace and treats "-" as empty.
func CleanCell(s string) string {
	s = strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
	if s == "-" {
		return ""
	}
	return s
}

// ConvertWorkbook reads the morbidity code workbook and returns entries
// sorted by code. An empty sheet name selects the first sheet.
func ConvertWorkbook(path, sheet string) ([]models.AyushCode, ConversionStats, error) {
	stats := ConversionStats{Categories: map[string]int{}}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, stats, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, stats, fmt.Errorf("workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, stats, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, stats, fmt.Errorf("sheet %s is empty", sheet)
	}

	header := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		header[strings.TrimSpace(h)] = i
	}
	if _, ok := header[colCode]; !ok {
		return nil, stats, fmt.Errorf("sheet %s has no %s column", sheet, colCode)
	}

	var codes []models.AyushCode
	for _, row := range rows[1:] {
		stats.Rows++
		cell := func(col string) string {
			i, ok := header[col]
			if !ok || i >= len(row) {
				return ""
			}
			return CleanCell(row[i])
		}

		entry, ok := convertRow(cell)
		if !ok {
			stats.Skipped++
			continue
		}
		stats.Categories[entry.Category]++
		codes = append(codes, entry)
	}

	sort.SliceStable(codes, func(i, j int) bool { return codes[i].Code < codes[j].Code })
	stats.Converted = len(codes)
	return codes, stats, nil
}

func convertRow(cell func(string) string) (models.AyushCode, bool) {
	code := cell(colCode)
	if code == "" || code == "AYU" || code == "DIS" {
		return models.AyushCode{}, false
	}

	term := cell(colTerm)
	diacritical := cell(colTermDiacritical)
	shortDef := cell(colShortDef)
	longDef := cell(colLongDef)
	english := cell(colNameEnglish)
	ontology := cell(colOntology)

	var parts []string
	for _, p := range []string{shortDef, longDef, english} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	description := term
	if len(parts) > 0 {
		description = strings.Join(parts, " | ")
	}

	name := term
	if name == "" {
		name = english
	}
	if name == "" {
		name = diacritical
	}
	if name == "" {
		return models.AyushCode{}, false
	}
	if description == "" {
		description = name
	}

	return models.AyushCode{
		Code:             code,
		NamcID:           cell(colID),
		Name:             name,
		NameDiacritical:  diacritical,
		NameDevanagari:   cell(colTermDevanagari),
		NameEnglish:      english,
		Description:      description,
		ShortDefinition:  shortDef,
		LongDefinition:   longDef,
		Category:         CategoryFromOntology(ontology),
		OntologyBranches: ontology,
		System:           models.DefaultSystem,
		IndexName:        cell(colNameEnglishIdx),
	}, true
}
