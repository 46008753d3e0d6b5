// Package api serves the match recorder over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/libero/internal/app"
	"github.com/okian/libero/internal/domain/model"
	"github.com/okian/libero/internal/domain/report"
	"github.com/okian/libero/internal/domain/stats"
	"github.com/okian/libero/pkg/logger"
)

// maxBodyBytes bounds request bodies; a roster of two full teams fits easily.
const maxBodyBytes = 1 << 20

// IdempotencyHeader carries the client submission key of POST /matches/{id}/events.
const IdempotencyHeader = "Idempotency-Key"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateMatch(ctx context.Context, req service.CreateMatchRequest) (service.MatchInfo, error)
	Match(ctx context.Context, id string) (service.MatchInfo, error)
	Matches(ctx context.Context) []service.MatchInfo

	// Record appends one event; key makes the call idempotent when non-empty.
	Record(ctx context.Context, matchID, key string, e model.Event) (model.Event, error)

	Events(ctx context.Context, id string, f report.Filter) ([]model.Event, error)
	Stats(ctx context.Context, id string, f *report.Filter) (stats.Report, error)
	Report(ctx context.Context, id string, f report.Filter) (report.FilteredReport, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
	eventsHandler  *EventsHandler
	reportsHandler *ReportsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchesHandler: NewMatchesHandler(deps, log),
		eventsHandler:  NewEventsHandler(deps, log),
		reportsHandler: NewReportsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /matches", MetricsMiddleware(s.matchesHandler.HandleCreate, "matches"))
	mux.HandleFunc("GET /matches", MetricsMiddleware(s.matchesHandler.HandleList, "matches"))
	mux.HandleFunc("GET /matches/{id}", MetricsMiddleware(s.matchesHandler.HandleGet, "match"))

	mux.HandleFunc("POST /matches/{id}/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("GET /matches/{id}/events", MetricsMiddleware(s.eventsHandler.HandleListEvents, "events"))

	mux.HandleFunc("GET /matches/{id}/stats", MetricsMiddleware(s.reportsHandler.HandleStats, "match_stats"))
	mux.HandleFunc("GET /matches/{id}/report", MetricsMiddleware(s.reportsHandler.HandleReport, "report"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a single JSON document and rejects unknown fields.
func decode(w http.ResponseWriter, r *http.Request, op string, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return wrapKind(op, ErrBadRequest, err)
	}
	return nil
}
