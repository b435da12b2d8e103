// Package escalation executes the crisis protocol around state transitions:
// resource selection, audit emission, re-prompt rate limiting, and the
// human hand-off signal.
package escalation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindflowhq/sanctuary-engine/internal/audit"
	"github.com/mindflowhq/sanctuary-engine/internal/resources"
	"github.com/mindflowhq/sanctuary-engine/internal/session"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

var coordinatorTracer = otel.Tracer("sanctuary/escalation-coordinator")

// msgCompactReminder keeps options visible without re-delivering the full
// resource block; repetition desensitizes.
const msgCompactReminder = "Please choose: hotline info, grounding, or just talk."

// Summary is the hand-off payload for the human-notification collaborator.
type Summary struct {
	SessionID       string   `json:"session_id"`
	Region          string   `json:"region"`
	State           string   `json:"state"`
	MatchedPhrases  []string `json:"matched_phrases,omitempty"`
	EscalationCount int      `json:"escalation_count"`
	MessageCount    int      `json:"message_count"`
}

// Notifier is the human hand-off collaborator. Calls are best-effort;
// delivery guarantees belong to the implementation.
type Notifier interface {
	NotifyHuman(ctx context.Context, summary Summary) error
}

// Coordinator reacts to state-machine transitions. It never blocks a turn on
// downstream collaborators: audit goes through the async emitter and human
// notification runs fire-and-forget.
type Coordinator struct {
	emitter  audit.Emitter
	notifier Notifier
	logger   *logging.Logger
}

// NewCoordinator wires the coordinator to its collaborators.
func NewCoordinator(emitter audit.Emitter, notifier Notifier, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Coordinator{
		emitter:  emitter,
		notifier: notifier,
		logger:   logger,
	}
}

// HandleTransition applies protocol side effects for one transition and
// returns any additional actions to append to the turn's action list.
// The caller must hold the session lock.
func (c *Coordinator) HandleTransition(ctx context.Context, s *session.Session, tr session.Transition) []session.Action {
	ctx, span := coordinatorTracer.Start(ctx, "escalation.handle_transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("transition.kind", string(tr.Kind)),
		attribute.String("session.region", s.Region),
	)

	switch tr.Kind {
	case session.TransitionCrisisPending:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventCrisisDetected, audit.Details{
			MatchedPhrases: tr.Assessment.CrisisMatches,
			CompositeScore: tr.Assessment.CompositeScore,
			Region:         s.Region,
		}))
		return nil

	case session.TransitionCrisisRepeat:
		return c.deliverResources(ctx, s)

	case session.TransitionConsentAccepted:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventConsentGiven, audit.Details{
			Decision: string(tr.Decision),
			Region:   s.Region,
		}))
		actions := c.deliverResources(ctx, s)
		actions = append(actions, c.notifyHuman(ctx, s)...)
		return actions

	case session.TransitionConsentDeclined:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventConsentDeclined, audit.Details{
			Decision: string(tr.Decision),
			Region:   s.Region,
		}))
		// Resources still reach the user; only the hand-off is withheld.
		return c.deliverResources(ctx, s)

	case session.TransitionConsentUnspecified:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventConsentUnspecified, audit.Details{
			Decision: string(tr.Decision),
			Region:   s.Region,
		}))
		return c.deliverResources(ctx, s)

	case session.TransitionHumanConnected:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventHumanConnected, audit.Details{
			Region:      s.Region,
			Escalations: s.EscalationCount,
		}))
		return nil

	case session.TransitionSessionEnded:
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventSessionEnded, audit.Details{
			MessageCount: s.MessageCount(),
			Escalations:  s.EscalationCount,
			Region:       s.Region,
		}))
		return nil
	}

	return nil
}

// deliverResources shows the full region resource block the first time and
// the compact reminder afterwards. Lookup never fails: unknown regions
// resolve to the default record.
func (c *Coordinator) deliverResources(ctx context.Context, s *session.Session) []session.Action {
	rec := resources.Lookup(s.Region)

	if s.CrisisOfferedAt != nil {
		c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventResourcesDelivered, audit.Details{
			Region:   s.Region,
			Reminder: true,
		}))
		return []session.Action{{
			Type:    session.ActionBotMessage,
			Message: msgCompactReminder,
			Compact: true,
		}}
	}

	now := time.Now().UTC()
	s.CrisisOfferedAt = &now
	c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventResourcesDelivered, audit.Details{
		Region: s.Region,
	}))
	return []session.Action{{
		Type:     session.ActionShowResources,
		Resource: &rec,
	}}
}

// notifyHuman signals the hand-off collaborator without blocking the turn.
// Failure is logged and swallowed: user-visible safety information must not
// depend on a downstream notification succeeding.
func (c *Coordinator) notifyHuman(ctx context.Context, s *session.Session) []session.Action {
	summary := Summary{
		SessionID:       s.ID,
		Region:          s.Region,
		State:           string(s.State),
		MatchedPhrases:  s.RecentMatchedPhrases(5),
		EscalationCount: s.EscalationCount,
		MessageCount:    s.MessageCount(),
	}
	s.HumanNotified = true

	c.emitter.Emit(ctx, audit.NewEvent(s.ID, audit.EventHumanNotified, audit.Details{
		MatchedPhrases: summary.MatchedPhrases,
		Escalations:    summary.EscalationCount,
		Region:         summary.Region,
	}))

	notifier := c.notifier
	if notifier != nil {
		go func() {
			notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			if err := notifier.NotifyHuman(notifyCtx, summary); err != nil {
				c.logger.Error("escalation: human notification failed",
					"error", err,
					"session_id", summary.SessionID,
				)
			}
		}()
	}

	return []session.Action{{Type: session.ActionNotifyHuman}}
}
