package nlp

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upperLemmatizer struct{}

func (upperLemmatizer) Lemmatize(text string) string { return strings.ToUpper(text) }

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Amlapitta (Acid-Reflux)!", "amlapitta acid-reflux"},
		{"  Jwara,\tKasa\n", "jwara kasa"},
		{"ज्वर fever", "fever"},
		{"", ""},
		{"TYPE 2 diabetes", "type 2 diabetes"},
	}
	for _, tt := range tests {
		got := CleanText(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, got, CleanText(got), "clean must be idempotent for %q", tt.in)
	}
}

func TestExpandTerms_OrderAndSubstring(t *testing.T) {
	got := ExpandTerms("amlapitta")
	assert.Equal(t, "amlapitta acid reflux heartburn gerd gastritis bile heat inflammation", got)

	assert.Equal(t, "jwara with kasa fever pyrexia cough", ExpandTerms("jwara with kasa"))
	assert.Equal(t, "nothing here", ExpandTerms("nothing here"))
}

func TestRemoveDomainStopwords(t *testing.T) {
	assert.Equal(t, "chronic fever", RemoveDomainStopwords("Patient chronic fever DISEASE symptoms"))
	assert.Equal(t, "", RemoveDomainStopwords("treatment therapy"))
}

func TestPreprocess_WithoutLemmatizer(t *testing.T) {
	p := NewPreprocessor()
	assert.False(t, p.IsLoaded())

	got := p.Preprocess("Jwara disease")
	assert.Equal(t, "jwara fever pyrexia", got)
	assert.Equal(t, "", p.Preprocess(""))
}

func TestPreprocess_WithLemmatizerStage(t *testing.T) {
	p := NewPreprocessor()
	p.SetLemmatizer(upperLemmatizer{})
	require.True(t, p.IsLoaded())

	// domain stopwords match case-insensitively after lemmatization
	assert.Equal(t, "KASA COUGH", p.Preprocess("kasa patient"))

	noLemma := p.PreprocessWith("kasa patient", Options{ExpandSynonyms: false, Lemmatize: false})
	assert.Equal(t, "kasa", noLemma)
}

func TestPreprocessBatch_PreservesOrder(t *testing.T) {
	p := NewPreprocessor()
	out := p.PreprocessBatch([]string{"Kasa", "", "Pandu!"})
	assert.Equal(t, []string{"kasa cough", "", "pandu anemia pallor"}, out)
}

func TestPreprocess_ConcurrentUse(t *testing.T) {
	p := NewPreprocessor()
	p.SetLemmatizer(upperLemmatizer{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "JWARA FEVER PYREXIA", p.Preprocess("jwara"))
		}()
	}
	wg.Wait()
}
