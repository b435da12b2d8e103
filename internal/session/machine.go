package session

import (
	"fmt"
	"time"

	"github.com/mindflowhq/sanctuary-engine/internal/risk"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

// TransitionKind labels what a transition means to the coordinator.
type TransitionKind string

const (
	// TransitionNone is a turn that changed nothing the coordinator cares about.
	TransitionNone TransitionKind = "none"
	// TransitionElevated entered ACTIVE_ELEVATED from ACTIVE_NORMAL.
	TransitionElevated TransitionKind = "elevated"
	// TransitionDeescalated returned to ACTIVE_NORMAL after a calm streak.
	TransitionDeescalated TransitionKind = "deescalated"
	// TransitionCrisisPending parked the session awaiting consent.
	TransitionCrisisPending TransitionKind = "crisis_pending"
	// TransitionCrisisRepeat is a HIGH assessment while the crisis flow is
	// already underway; the coordinator applies the reminder rate limit.
	TransitionCrisisRepeat TransitionKind = "crisis_repeat"
	// TransitionConsentAccepted, Declined, and Unspecified resolve a parked
	// consent request.
	TransitionConsentAccepted    TransitionKind = "consent_accepted"
	TransitionConsentDeclined    TransitionKind = "consent_declined"
	TransitionConsentUnspecified TransitionKind = "consent_unspecified"
	// TransitionHumanConnected is the explicit connect-me sub-action.
	TransitionHumanConnected TransitionKind = "human_connected"
	// TransitionSessionEnded is terminal.
	TransitionSessionEnded TransitionKind = "session_ended"
)

// Decision is an explicit user answer to the consent prompt.
type Decision string

const (
	DecisionYes         Decision = "yes"
	DecisionNo          Decision = "no"
	DecisionUnspecified Decision = "unspecified"
	// DecisionConnect is the connect-me sub-action available once escalated.
	DecisionConnect Decision = "connect"
)

// Transition is the outcome of applying one input to a session.
type Transition struct {
	Kind       TransitionKind
	From       State
	To         State
	Actions    []Action
	Assessment risk.Assessment
	Decision   Decision
}

// Protocol copy. The safety question is asked, never inferred: the engine
// must not assume consent to act.
const (
	msgCrisisIntro     = "I sense this may be urgent. You're not alone. I can show hotline info, guide grounding, or just listen. What would you like?"
	msgSafetyQuestion  = "I want to check in for your safety. Are you thinking about harming yourself or ending your life?"
	msgConsentAccepted = "Thank you for telling me. Your safety matters. I can show crisis hotline info now."
	msgConsentDeclined = "I respect your choice. I'm still here with you. If you change your mind, help is always available."
	msgConsentTimeout  = "That's okay. I'll still share crisis resources in case they help. You deserve support."
	msgHumanJoining    = "A crisis counselor is joining this conversation now. They are trained to help with exactly what you're going through."
	msgDeescalated     = "I'm glad things feel a little steadier. I'm still here whenever you need."
	msgGroundingOffer  = "That sounds really tough. Would a short grounding exercise help?"
)

// Machine applies the conversation transition rules. It is stateless; all
// mutable state lives on the Session, which the caller must hold locked.
type Machine struct {
	calmStreakToResolve int
	logger              *logging.Logger
}

// NewMachine creates a machine. calmStreak is the number of consecutive
// NORMAL classifications required to leave ACTIVE_ELEVATED; one calm message
// never clears elevation.
func NewMachine(calmStreak int, logger *logging.Logger) *Machine {
	if calmStreak <= 0 {
		calmStreak = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Machine{calmStreakToResolve: calmStreak, logger: logger}
}

// ApplyAssessment advances the session for one classified utterance and
// returns the resulting transition with its ordered action list.
func (m *Machine) ApplyAssessment(s *Session, text string, a risk.Assessment) Transition {
	tr := Transition{Kind: TransitionNone, From: s.State, To: s.State, Assessment: a}

	switch {
	case a.Level == risk.LevelHigh:
		tr = m.applyHigh(s, a)
	case a.Level == risk.LevelLow || a.Level == risk.LevelModerate:
		tr = m.applyElevated(s, text, a)
	default:
		tr = m.applyNormal(s, text, a)
	}

	tr.To = s.State
	if tr.From != tr.To {
		m.logger.Info("session: state transition",
			"session_id", s.ID,
			"from", string(tr.From),
			"to", string(tr.To),
			"kind", string(tr.Kind),
		)
	}
	return tr
}

func (m *Machine) applyHigh(s *Session, a risk.Assessment) Transition {
	tr := Transition{From: s.State, Assessment: a}
	s.EscalationCount++
	s.calmStreak = 0

	switch s.State {
	case StateHumanConnected:
		// Classification continues for the transcript record only.
		tr.Kind = TransitionNone
	case StateCrisisPendingConsent, StateCrisisEscalated:
		// The crisis flow is already underway; the coordinator decides
		// between the full menu and the compact reminder.
		tr.Kind = TransitionCrisisRepeat
	default:
		now := time.Now().UTC()
		s.State = StateCrisisPendingConsent
		s.Paused = true
		s.ConsentRequestedAt = &now
		tr.Kind = TransitionCrisisPending
		tr.Actions = []Action{
			{Type: ActionPause},
			BotMessage(msgCrisisIntro),
			{
				Type:    ActionRequestConsent,
				Message: msgSafetyQuestion,
				Buttons: []string{"Yes - I need help", "No, just overwhelmed", "Prefer not to say"},
			},
		}
	}
	return tr
}

func (m *Machine) applyElevated(s *Session, text string, a risk.Assessment) Transition {
	tr := Transition{Kind: TransitionNone, From: s.State, Assessment: a}
	s.calmStreak = 0

	switch s.State {
	case StateCrisisPendingConsent:
		// Parked awaiting the consent answer; normal responses stay suspended.
	case StateHumanConnected:
		// No auto-prompting once a human is in the conversation.
	case StateActiveNormal:
		s.State = StateActiveElevated
		tr.Kind = TransitionElevated
		tr.Actions = m.supportiveActions(s, text, a)
	default:
		tr.Actions = m.supportiveActions(s, text, a)
	}
	return tr
}

func (m *Machine) applyNormal(s *Session, text string, a risk.Assessment) Transition {
	tr := Transition{Kind: TransitionNone, From: s.State, Assessment: a}

	switch s.State {
	case StateCrisisPendingConsent, StateHumanConnected:
		// Nothing to emit.
	case StateActiveElevated:
		s.calmStreak++
		if s.calmStreak >= m.calmStreakToResolve {
			s.State = StateActiveNormal
			s.calmStreak = 0
			tr.Kind = TransitionDeescalated
			tr.Actions = []Action{BotMessage(msgDeescalated)}
		} else {
			_, actions := respond(text)
			tr.Actions = actions
		}
	default:
		_, actions := respond(text)
		tr.Actions = actions
	}
	return tr
}

// supportiveActions builds the routed supportive response plus an optional
// grounding offer, suppressed after the first offer to avoid re-prompting
// fatigue.
func (m *Machine) supportiveActions(s *Session, text string, a risk.Assessment) []Action {
	intent, actions := respond(text)
	if !s.GroundingOffered && (wantsGrounding(intent) || a.Level == risk.LevelModerate) {
		s.GroundingOffered = true
		actions = append(actions, Action{Type: ActionOfferGrounding, Message: msgGroundingOffer})
	}
	return actions
}

// ResolveConsent resumes a session parked in CRISIS_PENDING_CONSENT, or
// handles the connect-me sub-action once escalated.
func (m *Machine) ResolveConsent(s *Session, decision Decision) (Transition, error) {
	if s.State == StateSessionEnded {
		return Transition{}, ErrSessionEnded
	}

	if decision == DecisionConnect {
		if s.State != StateCrisisEscalated {
			return Transition{}, ErrNoConsentPending
		}
		s.State = StateHumanConnected
		return Transition{
			Kind:     TransitionHumanConnected,
			From:     StateCrisisEscalated,
			To:       StateHumanConnected,
			Decision: decision,
			Actions:  []Action{BotMessage(msgHumanJoining)},
		}, nil
	}

	if s.State != StateCrisisPendingConsent {
		return Transition{}, ErrNoConsentPending
	}

	from := s.State
	s.Paused = false
	s.ConsentRequestedAt = nil

	tr := Transition{From: from, Decision: decision}
	switch decision {
	case DecisionYes:
		s.State = StateCrisisEscalated
		tr.Kind = TransitionConsentAccepted
		tr.Actions = []Action{{Type: ActionResume}, BotMessage(msgConsentAccepted)}
	case DecisionNo:
		s.State = StateActiveElevated
		tr.Kind = TransitionConsentDeclined
		tr.Actions = []Action{{Type: ActionResume}, BotMessage(msgConsentDeclined)}
	default:
		// The cautious branch: resources without hand-off, and extra
		// classifier caution on subsequent turns.
		s.State = StateActiveElevated
		s.ExtraCaution = true
		tr.Kind = TransitionConsentUnspecified
		tr.Decision = DecisionUnspecified
		tr.Actions = []Action{{Type: ActionResume}, BotMessage(msgConsentTimeout)}
	}
	s.calmStreak = 0
	tr.To = s.State
	m.logger.Info("session: consent resolved",
		"session_id", s.ID,
		"decision", string(decision),
		"to", string(tr.To),
	)
	return tr, nil
}

// End performs the terminal transition from any state.
func (m *Machine) End(s *Session) (Transition, Summary) {
	from := s.State
	s.State = StateSessionEnded
	s.Paused = false
	s.ConsentRequestedAt = nil

	summary := Summary{
		SessionID:       s.ID,
		MessageCount:    s.MessageCount(),
		EscalationCount: s.EscalationCount,
		FinalState:      StateSessionEnded,
		Region:          s.Region,
	}

	return Transition{
		Kind: TransitionSessionEnded,
		From: from,
		To:   StateSessionEnded,
		Actions: []Action{
			{Type: ActionResume},
			BotMessage(summaryMessage(summary)),
		},
	}, summary
}

func summaryMessage(s Summary) string {
	return fmt.Sprintf("Session summary: %d messages shared. Remember this space is not clinical care but a reflective aid. Take care of yourself.", s.MessageCount)
}
