package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/damon-houk/exchange-rate-chart/internal/application/service"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/middleware"
)

// ChartHandler handles HTTP requests for series and currencies
type ChartHandler struct {
	service *service.ChartService
	logger  logger.Logger
}

// NewChartHandler creates a new chart handler
func NewChartHandler(service *service.ChartService, log logger.Logger) *ChartHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &ChartHandler{
		service: service,
		logger:  log,
	}
}

// GetSeries handles retrieving the chart series of one currency over a date range
func (h *ChartHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	h.logger.Info("Handling get series request", map[string]interface{}{
		"request_id": requestID,
		"currency":   query.Get("currency"),
		"start":      query.Get("start"),
		"end":        query.Get("end"),
	})

	loc := h.service.Location()

	start, err := parseDate(query.Get("start"), loc)
	if err != nil {
		h.logger.Warn("Invalid start date", map[string]interface{}{
			"request_id": requestID,
			"start":      query.Get("start"),
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid date format",
			"start must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}

	end, err := parseDate(query.Get("end"), loc)
	if err != nil {
		h.logger.Warn("Invalid end date", map[string]interface{}{
			"request_id": requestID,
			"end":        query.Get("end"),
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid date format",
			"end must be in YYYY-MM-DD format", http.StatusBadRequest, requestID)
		return
	}

	params, err := h.service.ResolveParams(r.Context(), query.Get("currency"), start, end)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	result, err := h.service.Series(r.Context(), params)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	h.logger.Info("Series built", map[string]interface{}{
		"request_id": requestID,
		"currency":   params.Currency,
		"points":     len(result.Points),
	})

	sendJSON(w, http.StatusOK, NewSeriesResponse(result))
}

// ListCurrencies handles listing the available currencies, optionally filtered by q
func (h *ChartHandler) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query().Get("q")

	h.logger.Info("Handling list currencies request", map[string]interface{}{
		"request_id": requestID,
		"q":          q,
	})

	currencies, err := h.service.SearchCurrencies(r.Context(), q)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	sendJSON(w, http.StatusOK, CurrenciesResponse{Currencies: currencies})
}

// Health reports that the process is serving requests
func (h *ChartHandler) Health(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// RegisterRoutes registers the chart handler routes
func (h *ChartHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/currencies", h.ListCurrencies).Methods("GET")
	router.HandleFunc("/series", h.GetSeries).Methods("GET")

	h.logger.Info("Chart routes registered", map[string]interface{}{
		"routes": []string{
			"GET /health",
			"GET /currencies",
			"GET /series",
		},
	})
}
