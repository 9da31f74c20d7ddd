package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/apikey"
	"github.com/rickgao/prosper-api/internal/forecast"
	"github.com/rickgao/prosper-api/internal/report"
	"github.com/rickgao/prosper-api/internal/split"
)

const unhandledMessage = "UNHANDLED EXCEPTION"

// badRequestError marks client input errors.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// errorStatus maps an error to the status and message reported to the client.
func errorStatus(err error) (int, string) {
	var (
		splitErr *split.Error
		apiErr   *api.APIError
		badReq   *badRequestError
	)

	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.msg
	case errors.As(err, &splitErr):
		return splitErr.Status, splitErr.Error()
	case errors.As(err, &apiErr):
		if apiErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, "unknown region or type id"
		}
		return http.StatusBadGateway, "upstream unavailable"
	case errors.Is(err, report.ErrUnsupportedFormat):
		return http.StatusMethodNotAllowed, err.Error()
	case errors.Is(err, apikey.ErrInvalidKey):
		return http.StatusUnauthorized, "Invalid API key"
	case errors.Is(err, forecast.ErrRangeOutOfBounds):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, forecast.ErrNotEnoughData):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, unhandledMessage
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	attrs := []any{
		"request_id", RequestID(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Warn("request rejected", attrs...)
	}
	jsonError(w, msg, status)
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":  message,
		"status": status,
	})
}
