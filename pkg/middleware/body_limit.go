package middleware

import (
	"net/http"

	apperrors "minidoodle/pkg/errors"
)

// MaxRequestSize caps request bodies at limit bytes. Reads past the cap
// fail with *http.MaxBytesError, which the JSON decoder reports as 413.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				writeError(w, apperrors.New(apperrors.CodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
