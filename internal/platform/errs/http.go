package errs

import "net/http"

// HTTPStatus maps a taxonomy error to its response status. ConcurrencyError
// maps to 409 so clients can tell a retryable conflict from a bad request.
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsAccessDenied(err):
		return http.StatusForbidden
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConcurrency(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
