package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"todotrack-api/domain"
)

// errorResponse is the single JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a component error to its HTTP status. Internal failures
// are logged with full detail but surfaced as an opaque message.
func respondError(c echo.Context, logger *log.Logger, err error) error {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	msg := err.Error()
	if kind == domain.KindInternal {
		logger.WithFields(log.Fields{
			"path":   c.Path(),
			"method": c.Request().Method,
		}).Errorf("internal error: %v", err)
		msg = "internal server error"
	}
	return c.JSON(status, errorResponse{Error: msg})
}
