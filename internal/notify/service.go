package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindflowhq/sanctuary-engine/internal/escalation"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

// Service turns escalation summaries into on-call alerts. A nil sender
// downgrades the service to log-only so the engine keeps working without
// email credentials.
type Service struct {
	sender      EmailSender
	onCallEmail string
	onCallName  string
	logger      *logging.Logger
}

// NewService builds a notify service. sender may be nil.
func NewService(sender EmailSender, onCallEmail, onCallName string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if onCallName == "" {
		onCallName = "On-Call Counselor"
	}
	return &Service{
		sender:      sender,
		onCallEmail: onCallEmail,
		onCallName:  onCallName,
		logger:      logger,
	}
}

var _ escalation.Notifier = (*Service)(nil)

// NotifyHuman alerts the on-call counselor that a user consented to a
// hand-off. Falls back to a structured log entry when no sender is wired.
func (s *Service) NotifyHuman(ctx context.Context, summary escalation.Summary) error {
	if s.sender == nil || s.onCallEmail == "" {
		s.logger.Warn("notify: no email sender configured, logging hand-off instead",
			"session_id", summary.SessionID,
			"region", summary.Region,
			"escalation_count", summary.EscalationCount,
		)
		return nil
	}

	msg := EmailMessage{
		To:      s.onCallEmail,
		ToName:  s.onCallName,
		Subject: fmt.Sprintf("Crisis hand-off requested: session %s", summary.SessionID),
		Body:    formatSummary(summary),
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: hand-off alert for session %s: %w", summary.SessionID, err)
	}

	s.logger.Info("notify: hand-off alert delivered",
		"session_id", summary.SessionID,
		"to", s.onCallEmail,
	)
	return nil
}

func formatSummary(summary escalation.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A user has consented to connect with a human counselor.\n\n")
	fmt.Fprintf(&b, "Session:     %s\n", summary.SessionID)
	fmt.Fprintf(&b, "Region:      %s\n", summary.Region)
	fmt.Fprintf(&b, "State:       %s\n", summary.State)
	fmt.Fprintf(&b, "Messages:    %d\n", summary.MessageCount)
	fmt.Fprintf(&b, "Escalations: %d\n", summary.EscalationCount)
	if len(summary.MatchedPhrases) > 0 {
		fmt.Fprintf(&b, "Signals:     %s\n", strings.Join(summary.MatchedPhrases, ", "))
	}
	b.WriteString("\nPlease join the session as soon as possible.\n")
	return b.String()
}
