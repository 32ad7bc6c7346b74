package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/safar/go-shop-backend/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps an error from the core onto an HTTP status:
// not-found kinds become 404, the remaining business errors 400, and
// everything else is an internal failure the shopper cannot fix.
func (s *server) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrOrderNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrUserNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case database.IsBusinessError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
