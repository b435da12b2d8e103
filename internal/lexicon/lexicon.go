// Package lexicon scores raw message text for distress signals.
//
// Scoring is deterministic and table-driven so every classification can be
// explained by pointing at the matched phrases. The tables are process-wide,
// loaded once, and never mutated, so Score is safe to call from any number
// of goroutines.
package lexicon

import (
	"strings"
)

// crisisPhrases are exact high-severity phrases. Matching is substring
// containment on the lowercased text, never tokenized, so multi-word phrases
// match regardless of surrounding punctuation.
var crisisPhrases = []string{
	"kill myself",
	"end my life",
	"take my life",
	"taking my life",
	"suicide",
	"suicidal",
	"thoughts of suicide",
	"thinking about suicide",
	"thinking about death",
	"hurt myself",
	"hurt my self",
	"harm myself",
	"cut myself",
	"i might harm",
	"want to die",
	"i want to die",
	"going to die",
	"die today",
	"die tonight",
	"no reason to live",
	"better off dead",
	"end it all",
	"can't go on",
	"cant go on",
	"not worth living",
	"want to disappear",
	"don't want to be here",
	"dont want to be here",
	"wish i was dead",
	"i feel unsafe",
	"i am scared for my safety",
}

// moderatePhrases indicate sustained distress short of acute crisis.
var moderatePhrases = []string{
	"hopeless",
	"no hope",
	"worthless",
	"can't cope",
	"cant cope",
	"give up",
	"overwhelmed",
	"tired of everything",
	"empty inside",
	"numb",
	"exhausted",
	"burned out",
	"burnt out",
}

var negativeWords = map[string]struct{}{
	"sad": {}, "alone": {}, "tired": {}, "afraid": {}, "scared": {},
	"anxious": {}, "anxiety": {}, "panic": {}, "pain": {}, "ashamed": {},
	"guilty": {}, "guilt": {}, "angry": {}, "anger": {}, "fear": {},
	"worried": {}, "empty": {}, "useless": {}, "pointless": {},
	"meaningless": {}, "overwhelmed": {}, "numb": {}, "exhausted": {},
}

var positiveWords = map[string]struct{}{
	"hope": {}, "calm": {}, "okay": {}, "better": {}, "improving": {},
	"relieved": {}, "grateful": {}, "safe": {}, "progress": {},
	"proud": {}, "appreciate": {},
}

// Score holds the lexical analysis of one utterance. Derived, never persisted
// on its own.
type Score struct {
	// Distress is the scaled sentiment in [-1, 1]; negative means more distress.
	Distress float64
	// PositiveHits and NegativeHits count lexicon word occurrences.
	PositiveHits int
	NegativeHits int
	// CrisisMatches are the exact high-severity phrases found in the text.
	CrisisMatches []string
	// ModerateMatches are the medium-severity phrases found in the text.
	ModerateMatches []string
	// TokenCount is the number of word tokens after normalization.
	TokenCount int
}

// HasCrisisMatch reports whether any exact crisis phrase was present.
func (s Score) HasCrisisMatch() bool {
	return len(s.CrisisMatches) > 0
}

// HasModerateMatch reports whether any moderate-concern phrase was present.
func (s Score) HasModerateMatch() bool {
	return len(s.ModerateMatches) > 0
}

// Analyze scores a single utterance. Empty or unparseable text yields a zero
// Score, never an error: silence carries no signal but must not fail a turn.
func Analyze(text string) Score {
	tokens := Tokenize(text)

	var pos, neg int
	for _, tok := range tokens {
		if _, ok := negativeWords[tok]; ok {
			neg++
			continue
		}
		if _, ok := positiveWords[tok]; ok {
			pos++
		}
	}

	var distress float64
	if len(tokens) > 0 {
		raw := float64(pos-neg) / float64(max(len(tokens), 4))
		// A handful of charged words should dominate a short utterance.
		distress = clamp(raw*4, -1, 1)
	}

	lower := strings.ToLower(text)
	return Score{
		Distress:        distress,
		PositiveHits:    pos,
		NegativeHits:    neg,
		CrisisMatches:   matchPhrases(lower, crisisPhrases),
		ModerateMatches: matchPhrases(lower, moderatePhrases),
		TokenCount:      len(tokens),
	}
}

// Tokenize lowercases text, strips punctuation, and splits into word tokens.
func Tokenize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func matchPhrases(lower string, phrases []string) []string {
	var matched []string
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	return matched
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
