package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bloxkit/experience-notify/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the {message, status} envelope every error response
// uses. The body status always matches the HTTP status code.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]any{
		"message": msg,
		"status":  status,
	})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrMissingUniverseID),
		errors.Is(err, domain.ErrMissingAssetID),
		errors.Is(err, domain.ErrMissingJobID),
		errors.Is(err, domain.ErrMissingCredential),
		errors.Is(err, domain.ErrInvalidDelayTimestamp),
		errors.Is(err, domain.ErrDelayInPast):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
