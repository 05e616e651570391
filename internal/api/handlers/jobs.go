package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"railrisk/internal/core"
	"railrisk/internal/prediction"
	"railrisk/internal/queue"
	"railrisk/internal/types"
)

// JobEnqueuer sends forecast jobs to the worker queue.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, req queue.JobRequest) (*types.ForecastJobMessage, error)
}

// JobsHandler accepts forecast, scoring and crawl jobs for the worker.
type JobsHandler struct {
	producer  JobEnqueuer
	validator *core.Validator
	logger    *slog.Logger
}

func NewJobsHandler(producer JobEnqueuer, v *core.Validator, logger *slog.Logger) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{producer: producer, validator: v, logger: logger}
}

func (h *JobsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/forecast-jobs", h.HandleCreate)
}

// JobRequest is the body of POST /v1/forecast-jobs. An empty route list
// means every known route.
type JobRequest struct {
	Action   types.ForecastJobAction `json:"action" validate:"required,job_action"`
	RouteIDs []string                `json:"route_ids" validate:"max=50,dive,route_id"`
	Days     int                     `json:"days" validate:"omitempty,min=1,max=7"`
	Reason   string                  `json:"reason" validate:"omitempty,max=64"`
}

// HandleCreate handles POST /v1/forecast-jobs and answers 202 with the
// queued message.
func (h *JobsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	routeIDs := make([]string, 0, len(req.RouteIDs))
	for _, id := range req.RouteIDs {
		profile, ok := prediction.LookupProfile(id)
		if !ok {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidRoute,
				"unknown route",
				nil,
				map[string]any{"route_id": id},
			))
			return
		}
		routeIDs = append(routeIDs, profile.RouteID)
	}
	if len(routeIDs) == 0 {
		for _, p := range prediction.Profiles() {
			routeIDs = append(routeIDs, p.RouteID)
		}
	}

	days := req.Days
	if days == 0 && req.Action == types.JobActionForecast {
		days = defaultWeeklyDays
	}

	msg, err := h.producer.Enqueue(r.Context(), queue.JobRequest{
		Action:   req.Action,
		RouteIDs: routeIDs,
		Days:     days,
		Reason:   req.Reason,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to enqueue forecast job",
			"action", string(req.Action),
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusAccepted, core.APIResponse{Data: msg})
}
