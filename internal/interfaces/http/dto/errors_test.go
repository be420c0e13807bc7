package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/dealbridge/internal/domain/integration"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeConfiguration, http.StatusInternalServerError},
		{ErrCodeUpstream, http.StatusBadGateway},
		{ErrCodeERPRejected, http.StatusBadGateway},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestCodeForError(t *testing.T) {
	mapping := &integration.MappingError{Reason: "envelope is not valid JSON"}
	config := integration.NewConfigurationError("BASE_URL_OFFER", "")
	upstream := integration.NewHTTPStatusError("crm", "fetch account", 500, "")

	tests := []struct {
		name     string
		err      error
		rejected bool
		expected string
	}{
		{"nil", nil, false, ""},
		{"rejected", errors.New("ERP POST failed: 500"), true, ErrCodeERPRejected},
		{"mapping", mapping, false, ErrCodeInvalidJSON},
		{"configuration", fmt.Errorf("post: %w", config), false, ErrCodeConfiguration},
		{"upstream", fmt.Errorf("enrich account A1: %w", upstream), false, ErrCodeUpstream},
		{"other", errors.New("boom"), false, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeForError(tt.err, tt.rejected))
		})
	}
}

func TestFailureResponseJSON(t *testing.T) {
	out, err := json.Marshal(NewFailureResponse(ErrCodeERPRejected, "ERP POST failed: 500"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"message": "ERP POST failed: 500",
		"error": {"code": "ERR_ERP_REJECTED", "message": "ERP POST failed: 500"}
	}`, string(out))

	out, err = json.Marshal(NewSuccessResponse(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success": true}`, string(out))
}
