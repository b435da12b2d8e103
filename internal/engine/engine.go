// Package engine orchestrates a full conversation turn: admission, risk
// classification, the state machine, escalation side effects, transcripts,
// and metrics.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mindflowhq/sanctuary-engine/internal/escalation"
	"github.com/mindflowhq/sanctuary-engine/internal/observability/metrics"
	"github.com/mindflowhq/sanctuary-engine/internal/resources"
	"github.com/mindflowhq/sanctuary-engine/internal/risk"
	"github.com/mindflowhq/sanctuary-engine/internal/session"
	"github.com/mindflowhq/sanctuary-engine/internal/transcript"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

var engineTracer = otel.Tracer("sanctuary/engine")

// ErrSessionNotFound is returned when an operation targets an unknown session.
var ErrSessionNotFound = errors.New("engine: session not found")

// TurnResult is what the transport layer renders back to the client.
type TurnResult struct {
	SessionID  string           `json:"session_id"`
	Sequence   int64            `json:"sequence"`
	State      session.State    `json:"state"`
	Assessment risk.Assessment  `json:"assessment"`
	Actions    []session.Action `json:"actions"`
}

// Options configures an Engine. Zero-value collaborators degrade gracefully:
// a nil transcript store records nothing, nil metrics observe nothing.
type Options struct {
	Coordinator    *escalation.Coordinator
	Transcripts    *transcript.Store
	Metrics        *metrics.EngineMetrics
	Logger         *logging.Logger
	DefaultRegion  string
	ConsentTimeout time.Duration
	CalmStreak     int
}

// Engine owns the session registry. Turns within one session serialize on
// the session mutex; distinct sessions run concurrently.
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	timers   map[string]*time.Timer

	classifier  *risk.Classifier
	sensitive   *risk.Classifier
	machine     *session.Machine
	coordinator *escalation.Coordinator
	transcripts *transcript.Store
	metrics     *metrics.EngineMetrics
	logger      *logging.Logger

	defaultRegion  string
	consentTimeout time.Duration
}

// New builds an engine with both classifier profiles pre-constructed.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	region := strings.ToUpper(strings.TrimSpace(opts.DefaultRegion))
	if region == "" {
		region = "US"
	}
	timeout := opts.ConsentTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Engine{
		sessions:       make(map[string]*session.Session),
		timers:         make(map[string]*time.Timer),
		classifier:     risk.NewClassifier(risk.DefaultPolicy(), logger),
		sensitive:      risk.NewClassifier(risk.SensitivePolicy(), logger),
		machine:        session.NewMachine(opts.CalmStreak, logger),
		coordinator:    opts.Coordinator,
		transcripts:    opts.Transcripts,
		metrics:        opts.Metrics,
		logger:         logger,
		defaultRegion:  region,
		consentTimeout: timeout,
	}
}

// getOrCreate returns the session, creating it on first contact.
func (e *Engine) getOrCreate(id string) *session.Session {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if ok {
		return s
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[id]; ok {
		return s
	}
	s = session.New(id)
	s.Region = e.defaultRegion
	e.sessions[id] = s
	e.logger.Info("engine: session created", "session_id", id, "region", s.Region)
	return s
}

// get returns an existing session or ErrSessionNotFound.
func (e *Engine) get(id string) (*session.Session, error) {
	e.mu.RLock()
	s, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// SubmitUtterance runs one full turn. Sequence numbers are strict per
// session: a zero sequence is assigned the next number, anything else must
// match exactly or the turn is rejected for resubmission.
func (e *Engine) SubmitUtterance(ctx context.Context, sessionID string, seq int64, text string) (TurnResult, error) {
	started := time.Now()
	ctx, span := engineTracer.Start(ctx, "engine.submit_utterance")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	s := e.getOrCreate(sessionID)
	s.Lock()
	defer s.Unlock()

	if s.State == session.StateSessionEnded {
		return TurnResult{}, session.ErrSessionEnded
	}

	seq, err := s.Admit(seq)
	if err != nil {
		return TurnResult{}, err
	}

	// Blank input is not a signal. It consumes its sequence slot,
	// classifies NORMAL, and gets the generic supportive prompt.
	if strings.TrimSpace(text) == "" {
		return TurnResult{
			SessionID:  sessionID,
			Sequence:   seq,
			State:      s.State,
			Assessment: risk.Assessment{Level: risk.LevelNormal, Sequence: seq, AssessedAt: time.Now().UTC()},
			Actions:    []session.Action{session.GenericPrompt()},
		}, nil
	}

	classifier := e.classifier
	if s.ExtraCaution {
		classifier = e.sensitive
	}
	assessment := classifier.Classify(ctx, text, seq, s.RecentAssessments())

	s.Record(session.Turn{
		Utterance: session.Utterance{
			SessionID:  sessionID,
			Sequence:   seq,
			Text:       text,
			ReceivedAt: time.Now().UTC(),
		},
		Assessment: assessment,
	})

	tr := e.machine.ApplyAssessment(s, text, assessment)
	actions := tr.Actions
	if e.coordinator != nil {
		actions = append(actions, e.coordinator.HandleTransition(ctx, s, tr)...)
	}

	if tr.Kind == session.TransitionCrisisPending {
		e.armConsentTimer(sessionID)
	}

	e.recordTranscript(ctx, sessionID, seq, text, assessment, actions)
	e.metrics.ObserveClassification(string(assessment.Level))
	if tr.Kind != session.TransitionNone {
		e.metrics.ObserveEscalation(string(tr.Kind))
	}
	e.metrics.ObserveTurnLatency(string(assessment.Level), time.Since(started).Seconds())

	return TurnResult{
		SessionID:  sessionID,
		Sequence:   seq,
		State:      s.State,
		Assessment: assessment,
		Actions:    actions,
	}, nil
}

// ResolveConsent applies a user's answer to the safety question, or the
// connect-me request once escalated.
func (e *Engine) ResolveConsent(ctx context.Context, sessionID string, decision session.Decision) (TurnResult, error) {
	ctx, span := engineTracer.Start(ctx, "engine.resolve_consent")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("consent.decision", string(decision)),
	)

	s, err := e.get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	s.Lock()
	defer s.Unlock()

	tr, err := e.machine.ResolveConsent(s, decision)
	if err != nil {
		return TurnResult{}, err
	}
	e.disarmConsentTimer(sessionID)

	actions := tr.Actions
	if e.coordinator != nil {
		actions = append(actions, e.coordinator.HandleTransition(ctx, s, tr)...)
	}
	e.recordBotActions(ctx, sessionID, actions)
	e.metrics.ObserveEscalation(string(tr.Kind))

	return TurnResult{
		SessionID: sessionID,
		Sequence:  s.NextSequence() - 1,
		State:     s.State,
		Actions:   actions,
	}, nil
}

// SetRegion updates the session's resource region. Regions outside the
// directory are kept as-is; lookup falls back to the default record.
func (e *Engine) SetRegion(ctx context.Context, sessionID, region string) (string, error) {
	s := e.getOrCreate(sessionID)
	s.Lock()
	defer s.Unlock()

	if s.State == session.StateSessionEnded {
		return "", session.ErrSessionEnded
	}

	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = e.defaultRegion
	}
	if !resources.Known(region) {
		e.logger.Warn("engine: unknown region, directory default will apply",
			"session_id", sessionID, "region", region)
	}
	s.Region = region
	return s.Region, nil
}

// EndSession performs the terminal transition and returns the summary.
// Ending twice is an error.
func (e *Engine) EndSession(ctx context.Context, sessionID string) (session.Summary, []session.Action, error) {
	ctx, span := engineTracer.Start(ctx, "engine.end_session")
	defer span.End()

	s, err := e.get(sessionID)
	if err != nil {
		return session.Summary{}, nil, err
	}
	s.Lock()
	defer s.Unlock()

	if s.State == session.StateSessionEnded {
		return session.Summary{}, nil, session.ErrSessionEnded
	}

	e.disarmConsentTimer(sessionID)
	tr, summary := e.machine.End(s)

	actions := tr.Actions
	if e.coordinator != nil {
		actions = append(actions, e.coordinator.HandleTransition(ctx, s, tr)...)
	}
	e.recordBotActions(ctx, sessionID, actions)
	e.metrics.ObserveEscalation(string(tr.Kind))

	return summary, actions, nil
}

// armConsentTimer schedules the unspecified-consent fallback. The caller
// holds the session lock; the timer callback re-acquires it.
func (e *Engine) armConsentTimer(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
	}
	e.timers[sessionID] = time.AfterFunc(e.consentTimeout, func() {
		e.consentTimedOut(sessionID)
	})
}

func (e *Engine) disarmConsentTimer(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[sessionID]; ok {
		t.Stop()
		delete(e.timers, sessionID)
	}
}

// consentTimedOut resolves a still-pending consent prompt as unspecified:
// resources are shared and the classifier runs with extra caution, but no
// human is notified without an explicit yes.
func (e *Engine) consentTimedOut(sessionID string) {
	s, err := e.get(sessionID)
	if err != nil {
		return
	}
	s.Lock()
	defer s.Unlock()

	if s.State != session.StateCrisisPendingConsent {
		return
	}

	ctx := context.Background()
	tr, err := e.machine.ResolveConsent(s, session.DecisionUnspecified)
	if err != nil {
		return
	}
	e.logger.Info("engine: consent prompt timed out", "session_id", sessionID)

	actions := tr.Actions
	if e.coordinator != nil {
		actions = append(actions, e.coordinator.HandleTransition(ctx, s, tr)...)
	}
	e.recordBotActions(ctx, sessionID, actions)
	e.metrics.ObserveEscalation(string(tr.Kind))

	e.mu.Lock()
	delete(e.timers, sessionID)
	e.mu.Unlock()
}

// recordTranscript persists the user utterance and any bot replies.
// Transcript failures never fail the turn.
func (e *Engine) recordTranscript(ctx context.Context, sessionID string, seq int64, text string, a risk.Assessment, actions []session.Action) {
	if e.transcripts == nil {
		return
	}
	if err := e.transcripts.Append(ctx, sessionID, transcript.Message{
		Role:      "user",
		Body:      text,
		RiskLevel: string(a.Level),
		Sequence:  uint64(seq),
	}); err != nil {
		e.logger.Error("engine: transcript append failed", "error", err, "session_id", sessionID)
	}
	e.recordBotActions(ctx, sessionID, actions)
}

func (e *Engine) recordBotActions(ctx context.Context, sessionID string, actions []session.Action) {
	if e.transcripts == nil {
		return
	}
	for _, a := range actions {
		if a.Message == "" {
			continue
		}
		if err := e.transcripts.Append(ctx, sessionID, transcript.Message{
			Role: "bot",
			Body: a.Message,
		}); err != nil {
			e.logger.Error("engine: transcript append failed", "error", err, "session_id", sessionID)
		}
	}
}

// Snapshot reports a session's externally visible state.
func (e *Engine) Snapshot(sessionID string) (SessionView, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	s.Lock()
	defer s.Unlock()
	return SessionView{
		SessionID:       s.ID,
		State:           s.State,
		Region:          s.Region,
		MessageCount:    s.MessageCount(),
		EscalationCount: s.EscalationCount,
		NextSequence:    s.NextSequence(),
	}, nil
}

// SessionView is a read-only snapshot for transports and diagnostics.
type SessionView struct {
	SessionID       string        `json:"session_id"`
	State           session.State `json:"state"`
	Region          string        `json:"region"`
	MessageCount    int           `json:"message_count"`
	EscalationCount int           `json:"escalation_count"`
	NextSequence    int64         `json:"next_sequence"`
}

// Close stops outstanding consent timers.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}
