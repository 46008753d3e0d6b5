package api

import (
	"net/http"

	service "github.com/okian/libero/internal/app"
	"github.com/okian/libero/pkg/logger"
)

// MatchesHandler handles match creation and lookup.
type MatchesHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps Dependencies, log logger.Logger) *MatchesHandler {
	return &MatchesHandler{deps: deps, logger: log}
}

type listResponse struct {
	Matches []service.MatchInfo `json:"matches"`
}

// HandleCreate handles POST /matches.
func (h *MatchesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_match"
	var req service.CreateMatchRequest
	if err := decode(w, r, op, &req); err != nil {
		writeError(w, err)
		return
	}
	info, err := h.deps.CreateMatch(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/matches/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// HandleList handles GET /matches.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Matches: h.deps.Matches(r.Context())})
}

// HandleGet handles GET /matches/{id}.
func (h *MatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.Match(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
