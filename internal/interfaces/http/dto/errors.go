package dto

import (
	"net/http"

	"github.com/catalog/backend/internal/domain/shared"
)

// General error codes not owned by the domain
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "BAD_REQUEST"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "INTERNAL"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.ErrNotFound.Code:           http.StatusNotFound,
	shared.ErrValidation.Code:         http.StatusBadRequest,
	shared.ErrStorageConflict.Code:    http.StatusConflict,
	shared.ErrStorageUnavailable.Code: http.StatusServiceUnavailable,
	ErrCodeBadRequest:                 http.StatusBadRequest,
	ErrCodeInternal:                   http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting to 500
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
