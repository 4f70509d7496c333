package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-emtrack/types"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		ie *types.ImportError
		pe *types.PersistenceError
	)
	switch {
	case errors.Is(err, types.ErrRequestNotFound),
		errors.Is(err, types.ErrPartialNotFound),
		errors.Is(err, types.ErrScenarioNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUnknownLocation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrArchiveDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &ie):
		return http.StatusBadGateway
	case errors.As(err, &pe):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, log *zap.Logger, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func warningStrings[E error](errs []E) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
