package lexicon

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyzeDistress(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantMin     float64
		wantMax     float64
		wantPosHits int
		wantNegHits int
	}{
		{
			name:        "charged negative words dominate short text",
			text:        "sad alone scared",
			wantMin:     -1,
			wantMax:     -1,
			wantNegHits: 3,
		},
		{
			name:        "positive words",
			text:        "feeling grateful and safe and calm",
			wantMin:     1,
			wantMax:     1,
			wantPosHits: 3,
		},
		{
			name:    "neutral text",
			text:    "the meeting is at three tomorrow",
			wantMin: 0,
			wantMax: 0,
		},
		{
			name:    "mixed leans negative",
			text:    "i feel sad and anxious but a little hope",
			wantMin: -1,
			wantMax: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(tt.text)
			assert.GreaterOrEqual(t, got.Distress, tt.wantMin)
			assert.LessOrEqual(t, got.Distress, tt.wantMax)
			if tt.wantPosHits > 0 {
				assert.Equal(t, tt.wantPosHits, got.PositiveHits)
			}
			if tt.wantNegHits > 0 {
				assert.Equal(t, tt.wantNegHits, got.NegativeHits)
			}
		})
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "!!!...??", "\n\t"} {
		got := Analyze(text)
		assert.Zero(t, got.Distress, "text %q", text)
		assert.Empty(t, got.CrisisMatches)
		assert.Empty(t, got.ModerateMatches)
	}
}

func TestAnalyzeCrisisPhrases(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"I want to kill myself", "kill myself"},
		{"honestly, I've been thinking about suicide.", "suicide"},
		{"Sometimes I just want to disappear...", "want to disappear"},
		{"I WANT TO DIE", "want to die"},
		{"there's no reason to live, anymore", "no reason to live"},
	}

	for _, tt := range tests {
		got := Analyze(tt.text)
		assert.True(t, got.HasCrisisMatch(), "text %q", tt.text)
		assert.Contains(t, got.CrisisMatches, tt.want)
	}
}

func TestAnalyzeCrisisMatchIgnoresSentiment(t *testing.T) {
	// Positive surround must not mask an exact phrase.
	got := Analyze("I feel calm and grateful but I still want to die")
	assert.True(t, got.HasCrisisMatch())
}

func TestAnalyzeModeratePhrases(t *testing.T) {
	got := Analyze("I feel so hopeless and overwhelmed lately")
	assert.True(t, got.HasModerateMatch())
	assert.Contains(t, got.ModerateMatches, "hopeless")
	assert.Contains(t, got.ModerateMatches, "overwhelmed")
	assert.False(t, got.HasCrisisMatch())
}

func TestAnalyzePhraseMatchSurvivesPunctuation(t *testing.T) {
	// Phrase matching is substring containment, not token-based.
	got := Analyze(`"end my life"?! he typed`)
	assert.Contains(t, got.CrisisMatches, "end my life")
}

func TestTokenize(t *testing.T) {
	toks := Tokenize("Hello, WORLD! it's 2am")
	assert.Equal(t, []string{"hello", "world", "it", "s", "2am"}, toks)
}

func TestAnalyzeConcurrent(t *testing.T) {
	// Analyze holds no mutable state; hammer it from many goroutines so the
	// race detector has something to chew on.
	texts := []string{
		"I want to kill myself",
		"feeling grateful today",
		strings.Repeat("sad ", 50),
		"",
	}
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				for _, txt := range texts {
					_ = Analyze(txt)
				}
			}
		}()
	}
	wg.Wait()
}
