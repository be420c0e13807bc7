package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// sensitiveQueryParams are never recorded; requests carrying them are not traced
var sensitiveQueryParams = []string{"password", "client_secret", "refresh_token"}

// NewHTTPClient returns a client whose requests create client spans and
// carry trace context to the remote service. Requests with credentials in
// the query string are sent untraced since span attributes hold the full URL.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithFilter(withoutCredentials),
		),
	}
}

func withoutCredentials(r *http.Request) bool {
	q := r.URL.Query()
	for _, p := range sensitiveQueryParams {
		if q.Has(p) {
			return false
		}
	}
	return true
}
