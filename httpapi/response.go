package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wfunc/gardien/auth"
	"github.com/wfunc/gardien/logger"
	"github.com/wfunc/gardien/services"
)

type JsonResponse struct {
	Error   bool   `json:"error"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any, isErr bool, msg string) {
	response := &JsonResponse{
		Error:   isErr,
		Message: msg,
	}
	if !isErr {
		response.Data = data
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Log.Warnf("Writing response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), nil, true, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrUnknownUser), errors.Is(err, services.ErrUnknownQuest):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAdminCapReached):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrInvalidDevice),
		errors.Is(err, services.ErrInvalidDecision):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
