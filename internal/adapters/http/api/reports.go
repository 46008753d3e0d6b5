package api

import (
	"net/http"

	"github.com/okian/libero/internal/domain/report"
)

// ReportsHandler serves statistics and filtered reports.
type ReportsHandler struct {
	deps Dependencies
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies) *ReportsHandler {
	return &ReportsHandler{deps: deps}
}

// HandleStats handles GET /matches/{id}/stats. Query parameters restrict the
// aggregation the same way they restrict /report.
func (h *ReportsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.match_stats"
	f, err := report.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	var fp *report.Filter
	if !f.IsZero() {
		fp = &f
	}
	st, err := h.deps.Stats(r.Context(), r.PathValue("id"), fp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReport handles GET /matches/{id}/report.
func (h *ReportsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	const op = "api.report"
	f, err := report.ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, wrapKind(op, ErrBadRequest, err))
		return
	}
	rep, err := h.deps.Report(r.Context(), r.PathValue("id"), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
