package dto

import (
	"errors"
	"net/http"

	"github.com/erp/dealbridge/internal/domain/integration"
)

// Error code constants
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	// ErrCodeInternal is used for failures with no more specific kind
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeInvalidJSON is used when the envelope is not JSON
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeTooLarge is used when the body exceeds the configured limit
	ErrCodeTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeConfiguration is used when a credential or URL is missing
	ErrCodeConfiguration = "ERR_CONFIGURATION"
	// ErrCodeUpstream is used when the CRM or ERP call failed
	ErrCodeUpstream = "ERR_UPSTREAM"
	// ErrCodeERPRejected is used when the ERP answered with status >= 400
	ErrCodeERPRejected = "ERR_ERP_REJECTED"
	// ErrCodeRateLimited is used when a sender exceeds the webhook rate limit
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes. Upstream
// failures answer 502 so the webhook sender's retry policy applies.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:      http.StatusInternalServerError,
	ErrCodeInvalidJSON:   http.StatusBadRequest,
	ErrCodeTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeConfiguration: http.StatusInternalServerError,
	ErrCodeUpstream:      http.StatusBadGateway,
	ErrCodeERPRejected:   http.StatusBadGateway,
	ErrCodeRateLimited:   http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForError classifies a pipeline failure. rejected reports a gateway
// answer with status >= 400, which carries no error kind of its own.
func CodeForError(err error, rejected bool) string {
	switch {
	case err == nil:
		return ""
	case rejected:
		return ErrCodeERPRejected
	case errors.Is(err, integration.ErrMapping):
		return ErrCodeInvalidJSON
	case errors.Is(err, integration.ErrConfiguration):
		return ErrCodeConfiguration
	case errors.Is(err, integration.ErrUpstream):
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}
