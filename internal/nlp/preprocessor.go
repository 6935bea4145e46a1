package nlp

import (
	"sync"

	"namaste-icd-mapper/internal/logger"
)

// Options toggles the optional preprocessing stages.
type Options struct {
	ExpandSynonyms bool
	Lemmatize      bool
}

var DefaultOptions = Options{ExpandSynonyms: true, Lemmatize: true}

// Preprocessor normalizes free-text disease descriptions before embedding:
// clean, synonym expansion, lemmatization, domain stopword removal.
type Preprocessor struct {
	mu         sync.RWMutex
	lemmatizer Lemmatizer
	warnOnce   sync.Once
}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

// LoadLemmatizer constructs the English lemmatizer and installs it.
func (p *Preprocessor) LoadLemmatizer() error {
	l, err := NewEnglishLemmatizer()
	if err != nil {
		return err
	}
	p.SetLemmatizer(l)
	return nil
}

func (p *Preprocessor) SetLemmatizer(l Lemmatizer) {
	p.mu.Lock()
	p.lemmatizer = l
	p.mu.Unlock()
}

func (p *Preprocessor) IsLoaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lemmatizer != nil
}

func (p *Preprocessor) Preprocess(text string) string {
	return p.PreprocessWith(text, DefaultOptions)
}

func (p *Preprocessor) PreprocessWith(text string, opts Options) string {
	if text == "" {
		return ""
	}

	out := CleanText(text)
	if opts.ExpandSynonyms {
		out = ExpandTerms(out)
	}
	if opts.Lemmatize {
		out = p.lemmatize(out)
	}
	return RemoveDomainStopwords(out)
}

// PreprocessBatch preprocesses each text independently, preserving order.
func (p *Preprocessor) PreprocessBatch(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = p.Preprocess(t)
	}
	return out
}

func (p *Preprocessor) lemmatize(text string) string {
	p.mu.RLock()
	l := p.lemmatizer
	p.mu.RUnlock()

	if l == nil {
		p.warnOnce.Do(func() {
			logger.Warn("Lemmatizer not loaded, skipping lemmatization")
		})
		return text
	}
	return l.Lemmatize(text)
}
