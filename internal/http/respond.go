package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dehyl/missionctl/internal/core"
	"github.com/dehyl/missionctl/internal/gateway"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps sentinel errors to status codes; everything else passes
// its message through as a 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrInvalid):
		writeErrorMsg(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrConflict):
		writeErrorMsg(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrDisabled):
		writeErrorMsg(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		writeErrorMsg(w, http.StatusInternalServerError, err.Error())
	}
}
