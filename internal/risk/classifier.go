// Package risk turns lexical scores into discrete, auditable risk levels.
package risk

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindflowhq/sanctuary-engine/internal/lexicon"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

var classifierTracer = otel.Tracer("sanctuary/risk-classifier")

// Level is the discrete risk classification of one utterance.
type Level string

const (
	LevelNormal   Level = "NORMAL"
	LevelLow      Level = "LOW"
	LevelModerate Level = "MODERATE"
	LevelHigh     Level = "HIGH"
)

// Severity orders levels for comparisons; higher is more severe.
func (l Level) Severity() int {
	switch l {
	case LevelLow:
		return 1
	case LevelModerate:
		return 2
	case LevelHigh:
		return 3
	default:
		return 0
	}
}

// TriggerHeuristic is the TriggeredBy value when no phrase matched and the
// level came from the composite score alone.
const TriggerHeuristic = "heuristic"

// Assessment is the classification of a single utterance. Read-only once
// created; retained for the session lifetime so the lookback rule can see it.
type Assessment struct {
	Level            Level     `json:"level"`
	CompositeScore   int       `json:"composite_score"` // 0-100
	TriggeredBy      string    `json:"triggered_by"`
	CrisisMatches    []string  `json:"crisis_matches,omitempty"`
	ModerateMatches  []string  `json:"moderate_matches,omitempty"`
	Distress         float64   `json:"distress"`
	HasRecentPattern bool      `json:"has_recent_pattern"`
	Sequence         int64     `json:"sequence"`
	AssessedAt       time.Time `json:"assessed_at"`
}

// Policy carries the weights and thresholds of the classifier. Tone variants
// of the product ship as policies, not as separate classifier code paths.
type Policy struct {
	ModerateWeight int // added once when any moderate phrase matches
	DistressWeight int // negative distress magnitude scaled by this into 0-100
	ExclaimPoints  int // per '!' in the text
	ExclaimCap     int
	NegationPoints int // per negation word
	NegationCap    int

	CrisisFloor       int // composite floor when an exact crisis phrase matches
	HighThreshold     int
	ModerateThreshold int
	LowThreshold      int

	LookbackWindow   int // assessments examined by the cumulative-risk rule
	PatternThreshold int // crisis-matching assessments that force HIGH
}

// DefaultPolicy mirrors the weights the product has shipped with.
func DefaultPolicy() Policy {
	return Policy{
		ModerateWeight:    25,
		DistressWeight:    40,
		ExclaimPoints:     3,
		ExclaimCap:        15,
		NegationPoints:    2,
		NegationCap:       20,
		CrisisFloor:       85,
		HighThreshold:     80,
		ModerateThreshold: 45,
		LowThreshold:      20,
		LookbackWindow:    5,
		PatternThreshold:  2,
	}
}

// SensitivePolicy trips thresholds earlier. Used for sessions flagged for
// extra caution, e.g. after an unresolved consent prompt.
func SensitivePolicy() Policy {
	p := DefaultPolicy()
	p.HighThreshold = 70
	p.ModerateThreshold = 35
	p.LowThreshold = 15
	return p
}

var negationPattern = regexp.MustCompile(`(?i)\b(no|not|never|can't|cant|won't|wont)\b`)

// Classifier assigns risk levels. Stateless apart from its policy, so one
// instance serves all sessions concurrently.
type Classifier struct {
	policy Policy
	logger *logging.Logger
}

// NewClassifier creates a classifier with the given policy.
func NewClassifier(policy Policy, logger *logging.Logger) *Classifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &Classifier{policy: policy, logger: logger}
}

// Classify scores one utterance against the session's recent history.
// History must be ordered oldest-first; only the lookback window is read.
// Malformed or empty text classifies as NORMAL with score 0: the engine
// cannot invent signal, but refusing to answer would itself be a failure.
func (c *Classifier) Classify(ctx context.Context, text string, seq int64, history []Assessment) Assessment {
	_, span := classifierTracer.Start(ctx, "risk.classify")
	defer span.End()

	lex := lexicon.Analyze(text)
	now := time.Now().UTC()

	a := Assessment{
		Level:           LevelNormal,
		TriggeredBy:     TriggerHeuristic,
		CrisisMatches:   lex.CrisisMatches,
		ModerateMatches: lex.ModerateMatches,
		Distress:        lex.Distress,
		Sequence:        seq,
		AssessedAt:      now,
	}

	composite := c.compositeScore(text, lex)

	switch {
	case lex.HasCrisisMatch():
		a.Level = LevelHigh
		a.TriggeredBy = lex.CrisisMatches[0]
		composite = max(composite, c.policy.CrisisFloor)
		// Log the trigger phrase, never the message text.
		c.logger.Warn("risk: crisis phrase matched",
			"trigger", a.TriggeredBy,
			"sequence", seq,
		)
	case composite >= c.policy.HighThreshold:
		a.Level = LevelHigh
	case composite >= c.policy.ModerateThreshold:
		a.Level = LevelModerate
	case composite >= c.policy.LowThreshold:
		a.Level = LevelLow
	}

	// A moderate phrase alone is never dismissed as NORMAL/LOW, and it names
	// the trigger even when the score already cleared the band.
	if !lex.HasCrisisMatch() && lex.HasModerateMatch() {
		if a.Level.Severity() < LevelModerate.Severity() {
			a.Level = LevelModerate
		}
		a.TriggeredBy = lex.ModerateMatches[0]
	}

	a.CompositeScore = clampScore(composite)

	// Cumulative-risk rule: trailing off from crisis language into flat
	// affect is not resolution. Two or more crisis-matching utterances in
	// the recent window force HIGH regardless of the current message.
	if c.recentCrisisSignals(history) >= c.policy.PatternThreshold {
		a.HasRecentPattern = true
		if a.Level != LevelHigh {
			c.logger.Warn("risk: recent crisis pattern forced HIGH",
				"level_before", string(a.Level),
				"sequence", seq,
			)
			a.Level = LevelHigh
			a.CompositeScore = max(a.CompositeScore, c.policy.HighThreshold)
		}
	}

	span.SetAttributes(
		attribute.String("risk.level", string(a.Level)),
		attribute.Int("risk.composite_score", a.CompositeScore),
		attribute.Bool("risk.recent_pattern", a.HasRecentPattern),
	)

	return a
}

// compositeScore combines moderate-phrase presence, distress magnitude,
// punctuation intensity, and negation density into a 0-100 severity.
func (c *Classifier) compositeScore(text string, lex lexicon.Score) int {
	score := 0
	if lex.HasModerateMatch() {
		score += c.policy.ModerateWeight
	}
	if lex.Distress < 0 {
		score += int(-lex.Distress * float64(c.policy.DistressWeight))
	}
	score += min(c.policy.ExclaimCap, strings.Count(text, "!")*c.policy.ExclaimPoints)
	score += min(c.policy.NegationCap, len(negationPattern.FindAllString(text, -1))*c.policy.NegationPoints)
	return score
}

func (c *Classifier) recentCrisisSignals(history []Assessment) int {
	window := history
	if len(window) > c.policy.LookbackWindow {
		window = window[len(window)-c.policy.LookbackWindow:]
	}
	signals := 0
	for _, prev := range window {
		if len(prev.CrisisMatches) > 0 {
			signals++
		}
	}
	return signals
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
