package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"railrisk/internal/core"
	"railrisk/internal/prediction"
	"railrisk/internal/types"
)

const (
	defaultWeeklyDays = 7
	maxWeeklyDays     = 14
)

// SnapshotLister reads stored daily forecasts.
type SnapshotLister interface {
	ListByRoute(ctx context.Context, routeID string, from, to time.Time) ([]types.DailySnapshot, error)
}

// ReportStore persists and aggregates rider reports.
type ReportStore interface {
	Insert(ctx context.Context, routeID string, kind types.ReportType, at time.Time) error
	Aggregate(ctx context.Context, routeID string, now time.Time) (types.CrowdsourcedAggregate, error)
}

// RoutesHandler serves route profiles, stored weekly forecasts and rider
// report submission.
type RoutesHandler struct {
	snapshots SnapshotLister
	reports   ReportStore
	validator *core.Validator
	clock     types.Clock
	loc       *time.Location
	logger    *slog.Logger
}

func NewRoutesHandler(snapshots SnapshotLister, reports ReportStore, v *core.Validator, clock types.Clock, loc *time.Location, logger *slog.Logger) *RoutesHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoutesHandler{
		snapshots: snapshots,
		reports:   reports,
		validator: v,
		clock:     clock,
		loc:       loc,
		logger:    logger,
	}
}

func (h *RoutesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/routes", h.HandleList)
	r.Get("/routes/{routeID}/weekly", h.HandleWeekly)
	r.Post("/routes/{routeID}/reports", h.HandleReport)
}

// HandleList handles GET /v1/routes.
func (h *RoutesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	core.Data(w, r, prediction.Profiles(), nil)
}

// WeeklyResponse is the body of GET /v1/routes/{routeID}/weekly.
type WeeklyResponse struct {
	RouteID   string                `json:"route_id"`
	RouteName string                `json:"route_name"`
	From      string                `json:"from"`
	Days      []types.DailySnapshot `json:"days"`
}

// HandleWeekly handles GET /v1/routes/{routeID}/weekly?from=YYYY-MM-DD&days=N.
// from defaults to today in the operator's zone and days to 7.
func (h *RoutesHandler) HandleWeekly(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.route(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	days := defaultWeeklyDays
	if s := q.Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxWeeklyDays {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidInput,
				"days must be an integer between 1 and 14",
				nil,
				map[string]any{"field": "days"},
			))
			return
		}
		days = n
	}

	y, m, d := h.clock.Now().In(h.loc).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, h.loc)
	if s := q.Get("from"); s != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, s, h.loc)
		if err != nil {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidTime,
				"from must be a date in YYYY-MM-DD form",
				nil,
				map[string]any{"field": "from"},
			))
			return
		}
		from = parsed
	}

	snaps, err := h.snapshots.ListByRoute(r.Context(), profile.RouteID, from, from.AddDate(0, 0, days))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list snapshots",
			"route_id", profile.RouteID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}
	if snaps == nil {
		snaps = []types.DailySnapshot{}
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	core.Data(w, r, WeeklyResponse{
		RouteID:   profile.RouteID,
		RouteName: profile.Name,
		From:      from.Format(time.DateOnly),
		Days:      snaps,
	}, nil)
}

// ReportRequest is the body of POST /v1/routes/{routeID}/reports.
type ReportRequest struct {
	ReportType types.ReportType `json:"report_type" validate:"required,oneof=stopped delayed crowded resumed"`
}

// ReportResponse echoes the stored report and the route's refreshed
// aggregate.
type ReportResponse struct {
	RouteID    string                      `json:"route_id"`
	ReportType types.ReportType            `json:"report_type"`
	ReportedAt time.Time                   `json:"reported_at"`
	Aggregate  types.CrowdsourcedAggregate `json:"aggregate"`
}

// HandleReport handles POST /v1/routes/{routeID}/reports. Abuse control is
// left to the per-client rate limiter.
func (h *RoutesHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.route(w, r)
	if !ok {
		return
	}

	var req ReportRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	now := h.clock.Now().UTC()
	if err := h.reports.Insert(r.Context(), profile.RouteID, req.ReportType, now); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to store crowd report",
			"route_id", profile.RouteID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	resp := ReportResponse{RouteID: profile.RouteID, ReportType: req.ReportType, ReportedAt: now}
	agg, err := h.reports.Aggregate(r.Context(), profile.RouteID, now)
	if err != nil {
		// The report is stored; only the echo is degraded.
		h.logger.WarnContext(r.Context(), "failed to aggregate crowd reports",
			"route_id", profile.RouteID,
			"error", err,
		)
		core.JSON(w, r, http.StatusCreated, core.APIResponse{
			Data: resp,
			Meta: &types.ResponseMeta{Warnings: []string{"crowd_unavailable"}},
		})
		return
	}
	resp.Aggregate = agg
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: resp})
}

// route resolves the {routeID} path parameter to a known profile, writing
// a 404 when there is none.
func (h *RoutesHandler) route(w http.ResponseWriter, r *http.Request) (types.RouteVulnerabilityProfile, bool) {
	id := chi.URLParam(r, "routeID")
	profile, ok := prediction.LookupProfile(id)
	if !ok {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeNotFoundRoute,
			"route not found",
			nil,
			map[string]any{"route_id": id},
		))
		return profile, false
	}
	return profile, true
}
