package http

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "macpulse/internal/errors"
	"macpulse/internal/middleware"
	"macpulse/internal/services"
	"macpulse/internal/transmission"
	api "macpulse/pkg/contracts/api/v1"
)

// TransmissionHandler serves estimation, reports and cascade simulation
type TransmissionHandler struct {
	service      TransmissionServiceInterface
	validation   *middleware.ValidationMiddleware
	query        *middleware.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewTransmissionHandler creates a new transmission handler
func NewTransmissionHandler(service TransmissionServiceInterface, validation *middleware.ValidationMiddleware, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *TransmissionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	if validation == nil {
		validation = middleware.NewValidationMiddleware(logger, errorHandler, 0)
	}
	return &TransmissionHandler{
		service:      service,
		validation:   validation,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "transmission_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the transmission routes
func (h *TransmissionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/latest", h.GetLatest)
	r.Get("/latest/text", h.GetLatestText)
	r.Get("/matrix", h.GetMatrix)
	r.Get("/causality", h.GetCausality)
	r.Get("/validation", h.GetValidation)

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))
		r.Use(h.validation.ValidateRequest)

		r.Post("/estimate", h.Estimate)
		r.Post("/validation", h.AddValidation)
		r.Post("/cascade", h.SimulateCascade)
	})

	return r
}

// Estimate handles POST /api/v1/transmission/estimate
func (h *TransmissionHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.service.Estimate(r.Context(), req.Input())
	if err != nil && report == nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := api.EstimateResponse{Report: report}
	if err != nil {
		h.logger.WarnContext(r.Context(), "estimate succeeded with warnings",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()))
		resp.Warnings = append(resp.Warnings, err.Error())
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// GetLatest handles GET /api/v1/transmission/latest
func (h *TransmissionHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Latest(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// GetLatestText handles GET /api/v1/transmission/latest/text
func (h *TransmissionHandler) GetLatestText(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.LatestText(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.PlainText(w, r, text)
}

// GetMatrix handles GET /api/v1/transmission/matrix?view=... The default view
// is the normalized transmission matrix.
func (h *TransmissionHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	view, ok := h.query.ValidateEnum(w, r, "view", api.MatrixViews(), api.ViewNormalized)
	if !ok {
		return
	}

	report, err := h.service.Latest(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if report.Estimate == nil {
		h.errorHandler.HandleError(w, r, apierrors.NotFoundError("transmission estimate"))
		return
	}

	pillars := report.Estimate.Pillars
	if view == api.ViewDict {
		dict := report.Transmission
		if dict == nil {
			dict = transmission.MatrixToDict(report.Estimate.Transmission, pillars)
		}
		render.JSON(w, r, api.MatrixResponse{
			RunID:   report.RunID,
			View:    view,
			Pillars: pillars,
			Dict:    dict,
		})
		return
	}

	m, err := selectMatrix(report, view)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.MatrixResponse{
		RunID:   report.RunID,
		View:    view,
		Pillars: pillars,
		Matrix:  m,
		Dict:    transmission.MatrixToDict(m, pillars),
	})
}

// GetCausality handles GET /api/v1/transmission/causality. significant=true
// keeps pairs below the significance level; limit=N returns the N pairs with
// the smallest p-values.
func (h *TransmissionHandler) GetCausality(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.query.ValidateEnum(w, r, "significant", []string{"true", "false"}, "false")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 0, 30, 0)
	if !ok {
		return
	}

	report, err := h.service.Latest(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	results := report.Causality
	if filter == "true" {
		results = report.SignificantPairs()
	}
	if limit > 0 {
		results = append([]transmission.CausalityResult(nil), results...)
		sort.SliceStable(results, func(i, j int) bool { return results[i].PValue < results[j].PValue })
		if len(results) > limit {
			results = results[:limit]
		}
	}
	if results == nil {
		results = []transmission.CausalityResult{}
	}

	render.JSON(w, r, api.CausalityResponse{
		RunID:        report.RunID,
		Significance: report.Params.Significance,
		Significant:  len(report.SignificantPairs()),
		Results:      results,
	})
}

// GetValidation handles GET /api/v1/transmission/validation
func (h *TransmissionHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Latest(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, api.NewValidationResponse(report))
}

// AddValidation handles POST /api/v1/transmission/validation
func (h *TransmissionHandler) AddValidation(w http.ResponseWriter, r *http.Request) {
	var req api.ValidationRequest
	if !h.decode(w, r, &req) {
		return
	}

	report, err := h.service.AddValidation(r.Context(), api.ValidationRecords(req.Records)...)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "validation records added",
		slog.String("run_id", report.RunID),
		slog.Int("records", len(req.Records)))
	render.JSON(w, r, api.NewValidationResponse(report))
}

// SimulateCascade handles POST /api/v1/transmission/cascade
func (h *TransmissionHandler) SimulateCascade(w http.ResponseWriter, r *http.Request) {
	var req api.CascadeRequest
	if !h.decode(w, r, &req) {
		return
	}

	path, err := h.service.SimulateCascade(r.Context(), req.State(), req.Options())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, path)
}

// decode reads and validates a JSON body. On failure the error response is
// already written.
func (h *TransmissionHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = apierrors.InvalidRequestWithError(err)
		}
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	if err := h.validation.ValidateStruct(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// handleServiceError maps service sentinels onto API errors
func (h *TransmissionHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNoReport):
		err = apierrors.ErrReportNotFound
	case errors.Is(err, services.ErrEstimateRunning):
		err = apierrors.ErrEstimateRunning
	case errors.Is(err, services.ErrReportSuperseded):
		err = apierrors.ErrReportSuperseded
	case errors.Is(err, services.ErrInvalidInput):
		err = apierrors.InvalidRequestWithError(err)
	}
	h.errorHandler.HandleError(w, r, err)
}

// selectMatrix picks one matrix of a report by view name
func selectMatrix(report *transmission.Report, view string) (transmission.Matrix, error) {
	est := report.Estimate
	rob := report.Robustness
	acc := report.Acceleration

	switch view {
	case api.ViewNormalized:
		return est.Transmission, nil
	case api.ViewRaw:
		return est.CumulativeResponse, nil
	case api.ViewMedian, api.ViewP10, api.ViewP90, api.ViewGIRF:
		if rob == nil {
			return nil, apierrors.NotFoundError("robustness results")
		}
		switch view {
		case api.ViewMedian:
			return rob.Median, nil
		case api.ViewP10:
			return rob.Pct10, nil
		case api.ViewP90:
			return rob.Pct90, nil
		default:
			return rob.Generalized, nil
		}
	case api.ViewNormal, api.ViewStress, api.ViewAcceleration:
		if acc == nil {
			return nil, apierrors.NotFoundError("regime results")
		}
		switch view {
		case api.ViewNormal:
			return acc.Normal, nil
		case api.ViewStress:
			return acc.Stress, nil
		default:
			return acc.Ratio, nil
		}
	}
	return nil, apierrors.ErrValidation("view", "unknown matrix view")
}
