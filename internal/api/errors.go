package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shockzort/tion-core/internal/operator"
)

// Error is the JSON body of every non-2xx response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "device_unavailable"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // client may have gone away
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeOperatorError maps operator sentinels to HTTP statuses. Anything
// else is reported with fallback, which callers pick per endpoint: 502 when
// the failure came from the device, 500 when it came from tiond.
//
//	ErrValidation                            422
//	ErrDeviceNotFound, ErrScenarioNotFound   404
//	ErrNotLoaded                             409
func writeOperatorError(w http.ResponseWriter, err error, fallback int) {
	switch {
	case errors.Is(err, operator.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())
	case errors.Is(err, operator.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, operator.ErrScenarioNotFound):
		writeNotFound(w, "scenario not found")
	case errors.Is(err, operator.ErrNotLoaded):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device not loaded")
	case fallback == http.StatusBadGateway:
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "device did not respond")
	default:
		writeInternalError(w, "internal error")
	}
}
