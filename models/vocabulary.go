package models

// AyushCode is one entry of the NAMASTE/AYUSH morbidity vocabulary.
type AyushCode struct {
	Code             string `json:"code"`
	NamcID           string `json:"namc_id"`
	Name             string `json:"name"`
	NameDiacritical  string `json:"name_diacritical"`
	NameDevanagari   string `json:"name_devanagari"`
	NameEnglish      string `json:"name_english"`
	Description      string `json:"description"`
	ShortDefinition  string `json:"short_definition,omitempty"`
	LongDefinition   string `json:"long_definition,omitempty"`
	Category         string `json:"category"`
	OntologyBranches string `json:"ontology_branches"`
	System           string `json:"system"`
	IndexName        string `json:"index_name,omitempty"`
}

// ICDCode is one ICD-11 classification entry.
type ICDCode struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Chapter     string `json:"chapter"`
}

const DefaultSystem = "Ayurveda"

type AyushSearchResponse struct {
	Results []AyushCode `json:"results"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"has_more"`
}

type AyushSearchQuery struct {
	Query    string `form:"query" binding:"required,min=1"`
	Category string `form:"category"`
	Limit    int    `form:"limit,default=20" binding:"min=1,max=100"`
	Offset   int    `form:"offset,default=0" binding:"min=0"`
}

type FuzzySearchQuery struct {
	Query string `form:"query" binding:"required,min=1"`
	Limit int    `form:"limit,default=10" binding:"min=1,max=50"`
}

type FuzzyHit struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type FuzzySearchResponse struct {
	Results []FuzzyHit `json:"results"`
	Total   uint64     `json:"total"`
}
