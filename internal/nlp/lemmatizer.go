package nlp

import (
	"fmt"
	"strings"

	"github.com/aaaton/golem/v4"
	golemen "github.com/aaaton/golem/v4/dicts/en"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	bleveen "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Lemmatizer reduces each token of a text to its dictionary form, dropping
// stop-words and punctuation.
type Lemmatizer interface {
	Lemmatize(text string) string
}

const lemmaAnalyzerName = "lemma_prep"

// EnglishLemmatizer tokenizes with a bleve analysis chain (unicode tokenizer,
// lowercase, English stop filter) and maps tokens through the golem English
// lemma dictionary. Safe for concurrent use once constructed.
type EnglishLemmatizer struct {
	analyzer analysis.Analyzer
	lemmas   *golem.Lemmatizer
}

// NewEnglishLemmatizer loads the analyzer and the lemma dictionary.
func NewEnglishLemmatizer() (*EnglishLemmatizer, error) {
	im := mapping.NewIndexMapping()
	err := im.AddCustomAnalyzer(lemmaAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			bleveen.StopName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	analyzer := im.AnalyzerNamed(lemmaAnalyzerName)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %q not registered", lemmaAnalyzerName)
	}

	lemmas, err := golem.New(golemen.New())
	if err != nil {
		return nil, fmt.Errorf("failed to load lemma dictionary: %w", err)
	}

	return &EnglishLemmatizer{analyzer: analyzer, lemmas: lemmas}, nil
}

func (l *EnglishLemmatizer) Lemmatize(text string) string {
	tokens := l.analyzer.Analyze([]byte(text))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		word := string(tok.Term)
		if word == "" {
			continue
		}
		if lemma := l.lemmas.Lemma(word); lemma != "" {
			word = strings.ToLower(lemma)
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}
