package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ramonehamilton/deckforge/internal/apperr"
)

// ErrorResponse represents an API error response. Kind, Reason and Entity
// carry the structured engine error when there is one.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Entity  string `json:"entity,omitempty"`
	Details any    `json:"details,omitempty"`
}

// SuccessResponse represents a successful API response with data.
type SuccessResponse struct {
	Data any `json:"data"`
}

// PaginatedResponse represents a paginated API response.
type PaginatedResponse struct {
	Data       any `json:"data"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Success writes a successful JSON response.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, newErrorResponse(status, err, nil))
}

// BadRequest writes a 400 Bad Request response.
func BadRequest(w http.ResponseWriter, err error) {
	Error(w, http.StatusBadRequest, err)
}

// NotFound writes a 404 Not Found response.
func NotFound(w http.ResponseWriter, err error) {
	Error(w, http.StatusNotFound, err)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, err error) {
	Error(w, http.StatusInternalServerError, err)
}

// ServiceUnavailable writes a 503 Service Unavailable response.
func ServiceUnavailable(w http.ResponseWriter, err error) {
	Error(w, http.StatusServiceUnavailable, err)
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		return http.StatusBadRequest
	case apperr.KindInfeasible:
		return http.StatusUnprocessableEntity
	case apperr.KindUnavailable:
		return http.StatusNotFound
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// FromError writes err with the status StatusFor picks.
func FromError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	JSON(w, status, newErrorResponse(status, err, nil))
}

// FromErrorWithDetails is FromError with a payload describing the partial
// outcome, such as a failed assembly trace.
func FromErrorWithDetails(w http.ResponseWriter, err error, details any) {
	status := StatusFor(err)
	JSON(w, status, newErrorResponse(status, err, details))
}

func newErrorResponse(status int, err error, details any) ErrorResponse {
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
		Details: details,
	}
	var e *apperr.Error
	if errors.As(err, &e) {
		resp.Kind = string(e.Kind)
		resp.Reason = e.Reason
		resp.Entity = e.Entity
	}
	return resp
}

// Paginated writes a paginated response.
func Paginated(w http.ResponseWriter, data any, page, pageSize, totalCount int) {
	totalPages := (totalCount + pageSize - 1) / pageSize
	if totalPages < 1 {
		totalPages = 1
	}

	JSON(w, http.StatusOK, PaginatedResponse{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	})
}
