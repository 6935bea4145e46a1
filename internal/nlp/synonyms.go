package nlp

import "strings"

type synonymEntry struct {
	term     string
	synonyms []string
}

// ayushSynonyms is iterated in order; expansion output depends on it.
var ayushSynonyms = []synonymEntry{
	{"amlapitta", []string{"acid reflux", "heartburn", "gerd", "gastritis"}},
	{"jwara", []string{"fever", "pyrexia"}},
	{"kasa", []string{"cough"}},
	{"shwasa", []string{"dyspnea", "breathlessness", "asthma"}},
	{"atisara", []string{"diarrhea", "loose stools"}},
	{"arsha", []string{"hemorrhoids", "piles"}},
	{"pandu", []string{"anemia", "pallor"}},
	{"prameha", []string{"diabetes", "polyuria"}},
	{"vata", []string{"wind", "gas", "bloating"}},
	{"pitta", []string{"bile", "heat", "inflammation"}},
	{"kapha", []string{"phlegm", "mucus", "congestion"}},
}

var domainStopwords = map[string]struct{}{
	"patient":   {},
	"disease":   {},
	"condition": {},
	"syndrome":  {},
	"disorder":  {},
	"symptoms":  {},
	"signs":     {},
	"diagnosis": {},
	"treatment": {},
	"therapy":   {},
}

// ExpandTerms appends the English synonyms of every AYUSH term found as a
// substring of text. Matching is substring-based, so "amlapitta" also
// pulls in the synonyms of "pitta".
func ExpandTerms(text string) string {
	parts := []string{text}
	for _, entry := range ayushSynonyms {
		if strings.Contains(text, entry.term) {
			parts = append(parts, entry.synonyms...)
		}
	}
	return strings.Join(parts, " ")
}

// RemoveDomainStopwords drops generic clinical filler words.
func RemoveDomainStopwords(text string) string {
	words := strings.Fields(text)
	kept := words[:0]
	for _, w := range words {
		if _, stop := domainStopwords[strings.ToLower(w)]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
