package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/damon-houk/exchange-rate-chart/internal/domain/entity"
	"github.com/damon-houk/exchange-rate-chart/internal/infrastructure/logger"
)

const dateLayout = "2006-01-02"

// sendJSON writes a JSON body with the given status
func sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	sendJSON(w, statusCode, resp)
}

// sendServiceError maps a service error to its HTTP status
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	switch {
	case errors.Is(err, entity.ErrInvalidParams):
		sendErrorResponse(w, log, "Invalid query parameters", err.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrSourceUnavailable):
		sendErrorResponse(w, log, "Rate source unavailable",
			"Exchange rates could not be retrieved, please retry later", http.StatusServiceUnavailable, requestID)
	default:
		log.Error("Unexpected service error", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred", http.StatusInternalServerError, requestID)
	}
}

// parseDate reads an optional YYYY-MM-DD value in loc. An empty value yields nil.
func parseDate(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	d, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
