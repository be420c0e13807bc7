package integration

import "net/http"

// PostResult is the ERP gateway's answer to a commercial-entry post.
// It is produced for every HTTP response, successful or not.
type PostResult struct {
	Status  int
	Data    any
	Headers http.Header
}

// Failed reports whether the gateway rejected the entry
func (r *PostResult) Failed() bool {
	return r.Status >= http.StatusBadRequest
}
