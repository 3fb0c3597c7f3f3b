package dto

import (
	"net/http"
	"testing"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{shared.ErrNotFound.Code, http.StatusNotFound},
		{shared.ErrValidation.Code, http.StatusBadRequest},
		{shared.ErrStorageConflict.Code, http.StatusConflict},
		{shared.ErrStorageUnavailable.Code, http.StatusServiceUnavailable},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}
