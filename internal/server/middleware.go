package server

import (
	"net/http"

	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// RunIDHeader carries the id of the run serving a response.
const RunIDHeader = "X-Run-Id"

// RunIDFilter tags every response with the run id so scrapes can be matched
// to the job that produced them.
func RunIDFilter(runID string) khttp.FilterFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(RunIDHeader, runID)
			next.ServeHTTP(w, r)
		})
	}
}
