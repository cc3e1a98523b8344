package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mindspool/recall/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var allFailed *domain.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		return http.StatusBadGateway
	}

	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}

	switch domainErr.Code {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeIngestion:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeEmbeddingQuota:
		return http.StatusTooManyRequests
	case domain.ErrCodeRetrieval:
		return http.StatusServiceUnavailable
	case domain.ErrCodeGeneration, domain.ErrCodeMalformed:
		return http.StatusBadGateway
	case domain.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Rotation exhaustion gets its summary message; the per-candidate detail
// stays in logs and Sentry rather than the response body.
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)

	var allFailed *domain.AllProvidersFailedError
	if errors.As(err, &allFailed) {
		Error(w, status, allFailed.Summary())
		return
	}

	Error(w, status, err.Error())
}
