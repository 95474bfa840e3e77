// Package extract derives named entities and subject-predicate-object
// triples from raw document text. Entity recognition is pluggable via
// the Recognizer interface; the built-in recognizer is a shallow
// rule-based tagger. Triple extraction is an intentionally best-effort
// relation signal, not a guarantee of grammatical correctness: per
// sentence, the first subject-like span and the first object-like token
// are paired under the main verb's lemma, and sentences lacking either
// produce no triple.
package extract

import "strings"

// Entity is a typed, named value found in text.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Triple is a directed subject-predicate-object relation extracted
// from a single sentence.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// Result holds everything extracted from one document's text.
type Result struct {
	Entities []Entity `json:"entities"`
	Triples  []Triple `json:"triples"`
}

// Recognizer finds named entities in text. Implementations may wrap an
// external NLP service; the default is the rule-based recognizer in
// this package.
type Recognizer interface {
	Recognize(text string) []Entity
}

// Extractor runs entity recognition once per document and the triple
// heuristic once per sentence.
type Extractor struct {
	rec Recognizer
}

// New returns an Extractor using the given recognizer. A nil recognizer
// installs the built-in rule-based one.
func New(rec Recognizer) *Extractor {
	if rec == nil {
		rec = NewRuleRecognizer()
	}
	return &Extractor{rec: rec}
}

// Extract returns the entities and triples found in text.
func (e *Extractor) Extract(text string) Result {
	res := Result{
		Entities: e.rec.Recognize(text),
	}
	for _, sent := range splitSentences(text) {
		if t, ok := extractTriple(sent); ok {
			res.Triples = append(res.Triples, t)
		}
	}
	return res
}

// verbLemmas maps inflected forms of common verbs to their lemma. The
// triple predicate is the lemma of the sentence's main verb.
var verbLemmas = map[string]string{
	"is": "be", "are": "be", "was": "be", "were": "be", "be": "be",
	"been": "be", "being": "be",
	"has": "have", "have": "have", "had": "have",
	"does": "do", "do": "do", "did": "do",
	"says": "say", "said": "say",
	"makes": "make", "made": "make",
	"owns": "own", "owned": "own",
	"runs": "run", "ran": "run",
	"leads": "lead", "led": "lead",
	"founded": "found", "founds": "found",
	"acquired": "acquire", "acquires": "acquire",
	"announced": "announce", "announces": "announce",
	"holds": "hold", "held": "hold",
	"became": "become", "becomes": "become",
}

// determiners and other function words skipped when hunting for the
// object head after the verb.
var skipWords = map[string]bool{
	"a": true, "an": true, "the": true, "its": true, "his": true,
	"her": true, "their": true, "this": true, "that": true,
	"these": true, "those": true, "one": true, "some": true,
	"not": true, "also": true, "now": true, "very": true,
	"currently": true,
}

// prepositions terminate the object search only when no candidate has
// been seen yet; "of", "in", "at" introduce oblique complements whose
// head still serves as an object-like token.
var prepositions = map[string]bool{
	"of": true, "in": true, "at": true, "by": true, "for": true,
	"to": true, "with": true, "on": true, "from": true, "as": true,
}

// extractTriple applies the sentence-level heuristic: locate the main
// verb, take the capitalised (or last nominal) span before it as the
// subject and the first content word after it as the object.
func extractTriple(sentence string) (Triple, bool) {
	tokens := strings.Fields(sentence)
	if len(tokens) < 3 {
		return Triple{}, false
	}

	verbIdx := -1
	var lemma string
	for i, tok := range tokens {
		if l, ok := verbLemmas[strings.ToLower(trimToken(tok))]; ok {
			verbIdx = i
			lemma = l
			break
		}
	}
	if verbIdx <= 0 || verbIdx >= len(tokens)-1 {
		return Triple{}, false
	}

	subject := subjectSpan(tokens[:verbIdx])
	object := objectHead(tokens[verbIdx+1:])
	if subject == "" || object == "" {
		return Triple{}, false
	}

	return Triple{Subject: subject, Predicate: lemma, Object: object}, true
}

// subjectSpan returns the last run of capitalised tokens before the
// verb, falling back to the last non-function word.
func subjectSpan(tokens []string) string {
	end := -1
	start := -1
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := trimToken(tokens[i])
		if isCapitalized(tok) {
			if end == -1 {
				end = i
			}
			start = i
		} else if end != -1 {
			break
		}
	}
	if end != -1 {
		parts := make([]string, 0, end-start+1)
		for _, t := range tokens[start : end+1] {
			parts = append(parts, trimToken(t))
		}
		return strings.Join(parts, " ")
	}

	for i := len(tokens) - 1; i >= 0; i-- {
		tok := strings.ToLower(trimToken(tokens[i]))
		if tok == "" || skipWords[tok] || prepositions[tok] {
			continue
		}
		return trimToken(tokens[i])
	}
	return ""
}

// objectHead returns the first content word after the verb, skipping
// determiners and modifiers. A capitalised token wins immediately; a
// lowercase candidate is returned only at the end of its noun phrase
// (before a preposition, punctuation, or sentence end) so that
// "a technology company" yields "company" rather than "technology".
func objectHead(tokens []string) string {
	candidate := ""
	for i, raw := range tokens {
		tok := trimToken(raw)
		if tok == "" {
			continue
		}
		lower := strings.ToLower(tok)
		if skipWords[lower] {
			continue
		}
		if prepositions[lower] {
			if candidate != "" {
				return candidate
			}
			continue
		}
		if isCapitalized(tok) {
			return tok
		}
		candidate = tok
		// Punctuation on the raw token closes the noun phrase.
		if strings.ContainsAny(raw, ".,;:!?") || i == len(tokens)-1 {
			return candidate
		}
	}
	return candidate
}

// abbreviations keep their trailing period when tokens are trimmed.
var abbreviations = map[string]bool{
	"Inc.": true, "Corp.": true, "Ltd.": true, "Co.": true,
	"Jr.": true, "Sr.": true, "Dr.": true, "Mr.": true,
	"Mrs.": true, "Ms.": true, "St.": true, "No.": true,
}

// trimToken strips surrounding punctuation. Trailing periods are kept
// only on known abbreviations ("Inc." stays intact, "Cupertino." does
// not).
func trimToken(tok string) string {
	tok = strings.Trim(tok, `,;:!?"'()[]{}`)
	if strings.HasSuffix(tok, ".") && !abbreviations[tok] {
		tok = strings.TrimRight(tok, ".")
	}
	return tok
}

// isCapitalized reports whether a token starts with an uppercase
// letter and is not all-caps noise shorter than two characters.
func isCapitalized(tok string) bool {
	if tok == "" {
		return false
	}
	r := rune(tok[0])
	return r >= 'A' && r <= 'Z'
}

// splitSentences breaks text on period/question/exclamation followed by
// whitespace or end of input.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			// Don't split inside abbreviations like "Inc." followed
			// by a lowercase continuation.
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				next := nextNonSpace(runes, i+1)
				if next != 0 && next >= 'a' && next <= 'z' {
					continue
				}
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func nextNonSpace(runes []rune, from int) rune {
	for i := from; i < len(runes); i++ {
		if runes[i] != ' ' && runes[i] != '\n' && runes[i] != '\t' {
			return runes[i]
		}
	}
	return 0
}
