package extract

import "strings"

// Entity labels emitted by the rule-based recognizer. The label set
// mirrors the coarse categories of common NER models.
const (
	LabelOrg    = "ORG"
	LabelPerson = "PERSON"
	LabelPlace  = "GPE"
)

// orgSuffixes mark a capitalised run as an organization.
var orgSuffixes = map[string]bool{
	"Inc.": true, "Inc": true, "Corp.": true, "Corp": true,
	"Corporation": true, "Ltd.": true, "Ltd": true, "LLC": true,
	"Co.": true, "Company": true, "Group": true, "Holdings": true,
	"Technologies": true, "Systems": true, "Labs": true,
	"Foundation": true, "University": true, "Institute": true,
}

// locationPreps introduce place complements; a capitalised run right
// after one of these is tagged as a place.
var locationPreps = map[string]bool{
	"in": true, "at": true, "near": true, "from": true,
}

// capStopwords are function words that happen to be capitalised at
// sentence starts and must not seed an entity run.
var capStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true,
	"these": true, "those": true, "it": true, "its": true, "he": true,
	"she": true, "they": true, "we": true, "i": true, "you": true,
	"his": true, "her": true, "their": true, "our": true, "my": true,
	"there": true, "here": true, "when": true, "where": true,
	"who": true, "what": true, "how": true, "why": true, "and": true,
	"but": true, "or": true, "if": true, "on": true, "in": true,
	"at": true, "by": true, "for": true, "to": true, "with": true,
	"as": true, "of": true, "is": true, "are": true, "was": true,
	"were": true, "has": true, "have": true, "had": true,
	"after": true, "before": true, "while": true, "since": true,
	"not": true, "no": true, "all": true, "some": true, "each": true,
}

// RuleRecognizer is a shallow, dependency-free named-entity tagger. It
// finds maximal runs of capitalised tokens and classifies them from
// surface cues: an organization suffix wins, a run following a
// location preposition becomes a place, two-token runs default to
// person names, everything else to organization. Best-effort only; a
// real NLP service can replace it via the Recognizer interface.
type RuleRecognizer struct{}

// NewRuleRecognizer returns the built-in rule-based recognizer.
func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{}
}

// Recognize returns the entities found in text, deduplicated by
// (text, label) in first-seen order.
func (r *RuleRecognizer) Recognize(text string) []Entity {
	var entities []Entity
	seen := make(map[Entity]bool)

	for _, sent := range splitSentences(text) {
		tokens := strings.Fields(sent)
		i := 0
		for i < len(tokens) {
			tok := trimToken(tokens[i])
			if !isCapitalized(tok) || capStopwords[strings.ToLower(tok)] {
				i++
				continue
			}

			// Extend the run over consecutive capitalised tokens.
			start := i
			run := []string{tok}
			for i+1 < len(tokens) {
				next := trimToken(tokens[i+1])
				if !isCapitalized(next) || capStopwords[strings.ToLower(next)] {
					break
				}
				// Punctuation after the current token ends the run.
				if strings.ContainsAny(tokens[i], ",;:!?") {
					break
				}
				run = append(run, next)
				i++
			}
			i++

			ent := Entity{
				Text:  strings.Join(run, " "),
				Label: classify(run, precedingWord(tokens, start)),
			}
			if !seen[ent] {
				seen[ent] = true
				entities = append(entities, ent)
			}
		}
	}
	return entities
}

// classify assigns a label to a capitalised run given the lowercase
// word preceding it.
func classify(run []string, preceding string) string {
	if orgSuffixes[run[len(run)-1]] {
		return LabelOrg
	}
	if locationPreps[preceding] {
		return LabelPlace
	}
	if len(run) == 2 {
		return LabelPerson
	}
	return LabelOrg
}

func precedingWord(tokens []string, idx int) string {
	if idx == 0 {
		return ""
	}
	return strings.ToLower(trimToken(tokens[idx-1]))
}
