// Package session owns per-conversation state and the transition rules that
// drive the escalation protocol.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/mindflowhq/sanctuary-engine/internal/risk"
)

// State is the conversation state of one session.
type State string

const (
	StateActiveNormal         State = "ACTIVE_NORMAL"
	StateActiveElevated       State = "ACTIVE_ELEVATED"
	StateCrisisPendingConsent State = "CRISIS_PENDING_CONSENT"
	StateCrisisEscalated      State = "CRISIS_ESCALATED"
	StateHumanConnected       State = "HUMAN_CONNECTED"
	StateSessionEnded         State = "SESSION_ENDED"
)

var (
	// ErrOutOfOrderUtterance is returned when a sequence number arrives out
	// of order. Retryable: the caller must resubmit in order.
	ErrOutOfOrderUtterance = errors.New("session: utterance out of order")
	// ErrSessionEnded is returned for turns against a terminal session.
	ErrSessionEnded = errors.New("session: session has ended")
	// ErrNoConsentPending is returned when a consent decision arrives but no
	// consent request is outstanding.
	ErrNoConsentPending = errors.New("session: no consent decision pending")
)

// Utterance is one user-authored message. Immutable once created.
type Utterance struct {
	SessionID  string    `json:"session_id"`
	Sequence   int64     `json:"sequence"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Turn pairs an utterance with its assessment. Sessions retain every turn
// for audit; the classifier only reads the lookback window.
type Turn struct {
	Utterance  Utterance       `json:"utterance"`
	Assessment risk.Assessment `json:"assessment"`
}

// Session is the engine-owned state for one conversation. A session is
// mutated only under its mutex; sessions share nothing with each other.
type Session struct {
	mu sync.Mutex

	ID     string
	Region string
	State  State

	// Paused suspends normal response generation during the crisis flow.
	Paused bool

	// CrisisOfferedAt is set when the full crisis menu was last delivered;
	// drives the compact-reminder rate limit.
	CrisisOfferedAt *time.Time

	// ConsentRequestedAt is set while a consent prompt is outstanding.
	ConsentRequestedAt *time.Time

	// EscalationCount increments each time risk reaches HIGH. Monotonic.
	EscalationCount int

	// GroundingOffered suppresses repeat grounding prompts within a session.
	GroundingOffered bool

	// ExtraCaution widens classifier sensitivity after an unresolved consent
	// prompt.
	ExtraCaution bool

	// HumanNotified records that the hand-off collaborator was signaled.
	HumanNotified bool

	Turns []Turn

	calmStreak   int
	nextSequence int64

	CreatedAt      time.Time
	LastActivityAt time.Time
}

// New creates a session in ACTIVE_NORMAL with sequence numbering starting at 1.
func New(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             id,
		State:          StateActiveNormal,
		nextSequence:   1,
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Lock acquires the session's turn mutex. Turns within a session serialize;
// different sessions proceed in parallel.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the turn mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// NextSequence returns the sequence number the session expects next.
func (s *Session) NextSequence() int64 { return s.nextSequence }

// Admit validates an incoming sequence number and advances the counter.
// A zero sequence asks the session to assign the next one. The lookback
// rule depends on chronological order, so out-of-order turns are rejected
// rather than reordered.
func (s *Session) Admit(seq int64) (int64, error) {
	if seq == 0 {
		seq = s.nextSequence
	}
	if seq != s.nextSequence {
		return 0, ErrOutOfOrderUtterance
	}
	s.nextSequence++
	return seq, nil
}

// Record appends a completed turn to the session history.
func (s *Session) Record(turn Turn) {
	s.Turns = append(s.Turns, turn)
	s.LastActivityAt = time.Now().UTC()
}

// RecentAssessments returns the session's assessments oldest-first.
func (s *Session) RecentAssessments() []risk.Assessment {
	out := make([]risk.Assessment, 0, len(s.Turns))
	for _, t := range s.Turns {
		out = append(out, t.Assessment)
	}
	return out
}

// RecentMatchedPhrases collects matched phrases from the last n turns,
// oldest-first. Used in the human-notify summary.
func (s *Session) RecentMatchedPhrases(n int) []string {
	turns := s.Turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	var phrases []string
	for _, t := range turns {
		phrases = append(phrases, t.Assessment.CrisisMatches...)
		phrases = append(phrases, t.Assessment.ModerateMatches...)
	}
	return phrases
}

// MessageCount reports the number of user utterances recorded.
func (s *Session) MessageCount() int { return len(s.Turns) }

// Summary is the terminal report returned by endSession.
type Summary struct {
	SessionID       string `json:"session_id"`
	MessageCount    int    `json:"message_count"`
	EscalationCount int    `json:"escalation_count"`
	FinalState      State  `json:"final_state"`
	Region          string `json:"region"`
}
