package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindflowhq/sanctuary-engine/internal/escalation"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

type fakeSender struct {
	sent []EmailMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg EmailMessage) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestNotifyHumanSendsAlert(t *testing.T) {
	sender := &fakeSender{}
	svc := NewService(sender, "oncall@example.com", "Sam Duty", logging.Default())

	err := svc.NotifyHuman(context.Background(), escalation.Summary{
		SessionID:       "sess-42",
		Region:          "US",
		State:           "CRISIS_ESCALATED",
		MatchedPhrases:  []string{"want to die"},
		EscalationCount: 1,
		MessageCount:    7,
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, "oncall@example.com", msg.To)
	assert.Equal(t, "Sam Duty", msg.ToName)
	assert.Contains(t, msg.Subject, "sess-42")
	assert.Contains(t, msg.Body, "Region:      US")
	assert.Contains(t, msg.Body, "want to die")
	assert.Contains(t, msg.Body, "Escalations: 1")
}

func TestNotifyHumanWrapsSenderError(t *testing.T) {
	boom := errors.New("smtp down")
	svc := NewService(&fakeSender{err: boom}, "oncall@example.com", "", logging.Default())

	err := svc.NotifyHuman(context.Background(), escalation.Summary{SessionID: "sess-9"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "sess-9")
}

func TestNotifyHumanNoSenderIsNoop(t *testing.T) {
	svc := NewService(nil, "", "", logging.Default())

	err := svc.NotifyHuman(context.Background(), escalation.Summary{SessionID: "sess-1"})
	assert.NoError(t, err)
}

func TestNewSendGridSenderRequiresKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(SendGridConfig{}, nil))
	assert.NotNil(t, NewSendGridSender(SendGridConfig{APIKey: "SG.test", FromEmail: "noreply@example.com"}, nil))
}
