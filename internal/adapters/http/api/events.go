package api

import (
	"net/http"
	"strings"

	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/pkg/logger"
)

// EventsHandler handles event submission and listing.
type EventsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies, log logger.Logger) *EventsHandler {
	return &EventsHandler{deps: deps, logger: log}
}

type eventsResponse struct {
	MatchID string        `json:"match_id"`
	Events  []model.Event `json:"events"`
}

// HandlePostEvent handles POST /matches/{id}/events.
//
// The event is validated and applied before the response is written: 201
// carries the event as stored, with its sequence number and derived fields.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	var e model.Event
	if err := decode(w, r, op, &e); err != nil {
		writeError(w, err)
		return
	}
	id := r.PathValue("id")
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))

	stored, err := h.deps.Record(r.Context(), id, key, e)
	if err != nil {
		if status, _ := classify(err); status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "record failed", logger.String("match", id), logger.Error(err))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// HandleListEvents handles GET /matches/{id}/events.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	f, err := report.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	id := r.PathValue("id")
	events, err := h.deps.Events(r.Context(), id, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{MatchID: id, Events: events})
}
