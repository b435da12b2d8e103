package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mindflowhq/sanctuary-engine/internal/audit"
	"github.com/mindflowhq/sanctuary-engine/internal/http/middleware"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

// AdminAuditHandler exposes the append-only audit trail to operators.
type AdminAuditHandler struct {
	store  *audit.PostgresStore
	logger *logging.Logger
}

// NewAdminAuditHandler creates an admin audit handler.
func NewAdminAuditHandler(store *audit.PostgresStore, logger *logging.Logger) *AdminAuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminAuditHandler{store: store, logger: logger}
}

type auditListResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// ListEvents handles GET /admin/audit. Supported query parameters:
// session_id, event_type, start, end (RFC3339), limit, offset.
func (h *AdminAuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "audit store not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		SessionID: q.Get("session_id"),
		EventType: audit.EventType(q.Get("event_type")),
		Limit:     100,
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeJSONError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		filter.Offset = offset
	}
	if v := q.Get("start"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "start must be RFC3339")
			return
		}
		filter.StartTime = ts
	}
	if v := q.Get("end"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "end must be RFC3339")
			return
		}
		filter.EndTime = ts
	}

	events, err := h.store.Query(r.Context(), filter)
	if err != nil {
		h.logger.Error("handlers: audit query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "audit query failed")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	// Reading the accountability record is itself recorded.
	operator, _ := middleware.OperatorFromContext(r.Context())
	h.logger.Info("handlers: audit trail queried",
		"operator", operator,
		"session_id", filter.SessionID,
		"returned", len(events),
	)

	writeJSON(w, http.StatusOK, auditListResponse{Events: events, Count: len(events)})
}
