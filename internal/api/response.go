package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/cloudsync"
	"nflpicks/tracker/internal/metrics"

	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      int    `json:"code"`
	Timeout   bool   `json:"timeout,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	if nErr, ok := apperr.AsNetworkError(err); ok {
		if nErr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, cloudsync.ErrProviderNotImplemented):
		return http.StatusNotImplemented
	case apperr.IsConfiguration(err), apperr.IsDataFormat(err):
		return http.StatusBadRequest
	}
	var vErr *apperr.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("Request failed")
		metrics.RecordError("api", "internal")
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      status,
		Timeout:   status == http.StatusGatewayTimeout,
		RequestID: RequestID(r.Context()),
	})
}

func badRequest(w http.ResponseWriter, r *http.Request, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Error:     fmt.Sprintf(format, args...),
		Code:      http.StatusBadRequest,
		RequestID: RequestID(r.Context()),
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
