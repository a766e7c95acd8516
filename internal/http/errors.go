package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const genericErrorMessage = "internal server error"

// statusFor maps an error category to its HTTP status code.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, core.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the status of err's category. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var resp *JSONResponseBuilder
	switch {
	case status == http.StatusRequestEntityTooLarge:
		resp = ErrorResponse(status, core.ErrAttachmentTooLarge.Error())
	case status == http.StatusBadRequest:
		resp = BadRequestError(err.Error())
	case status == http.StatusNotFound:
		resp = NotFoundError(err.Error())
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		applog.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, "",
			applog.NewFields().WithRequest(r.Method, r.URL.Path))
		resp = InternalServerError(genericErrorMessage)
	default:
		resp = ErrorResponse(status, err.Error())
	}
	resp.Write(w)
}
