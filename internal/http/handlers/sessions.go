package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mindflowhq/sanctuary-engine/internal/engine"
	"github.com/mindflowhq/sanctuary-engine/internal/session"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

// SessionHandler exposes the conversation turn API.
type SessionHandler struct {
	engine *engine.Engine
	logger *logging.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(eng *engine.Engine, logger *logging.Logger) *SessionHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{engine: eng, logger: logger}
}

type messageRequest struct {
	Sequence int64  `json:"sequence"`
	Text     string `json:"text"`
}

type consentRequest struct {
	Decision string `json:"decision"`
}

type regionRequest struct {
	Region string `json:"region"`
}

type endResponse struct {
	Summary session.Summary  `json:"summary"`
	Actions []session.Action `json:"actions"`
}

// PostMessage handles POST /sessions/{sessionID}/messages.
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session id required")
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.engine.SubmitUtterance(r.Context(), sessionID, req.Sequence, req.Text)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PostConsent handles POST /sessions/{sessionID}/consent.
func (h *SessionHandler) PostConsent(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	decision, ok := parseDecision(req.Decision)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "decision must be yes, no, unspecified, or connect")
		return
	}

	result, err := h.engine.ResolveConsent(r.Context(), sessionID, decision)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PutRegion handles PUT /sessions/{sessionID}/region.
func (h *SessionHandler) PutRegion(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req regionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	region, err := h.engine.SetRegion(r.Context(), sessionID, req.Region)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "region": region})
}

// EndSession handles POST /sessions/{sessionID}/end.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, actions, err := h.engine.EndSession(r.Context(), sessionID)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, endResponse{Summary: summary, Actions: actions})
}

// GetSession handles GET /sessions/{sessionID}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	view, err := h.engine.Snapshot(sessionID)
	if err != nil {
		h.writeEngineError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func parseDecision(raw string) (session.Decision, bool) {
	switch session.Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case session.DecisionYes:
		return session.DecisionYes, true
	case session.DecisionNo:
		return session.DecisionNo, true
	case session.DecisionUnspecified:
		return session.DecisionUnspecified, true
	case session.DecisionConnect:
		return session.DecisionConnect, true
	}
	return "", false
}

func (h *SessionHandler) writeEngineError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, session.ErrOutOfOrderUtterance):
		writeJSONError(w, http.StatusConflict, "utterance out of order, resubmit in sequence")
	case errors.Is(err, session.ErrSessionEnded):
		writeJSONError(w, http.StatusGone, "session has ended")
	case errors.Is(err, session.ErrNoConsentPending):
		writeJSONError(w, http.StatusConflict, "no consent decision pending")
	case errors.Is(err, engine.ErrSessionNotFound):
		writeJSONError(w, http.StatusNotFound, "session not found")
	default:
		h.logger.Error("handlers: turn failed", "error", err, "session_id", sessionID)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
