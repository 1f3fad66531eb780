package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"grievance/models"
)

// respondWithJSON sends a JSON response
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

// respondWithError sends an error response
func respondWithError(w http.ResponseWriter, statusCode int, errorType, message string) {
	response := models.ErrorResponse{
		Error:   errorType,
		Message: message,
		Code:    statusCode,
	}
	respondWithJSON(w, statusCode, response)
}

// respondWithServiceError maps domain errors to HTTP statuses
func respondWithServiceError(w http.ResponseWriter, err error) {
	var ge *models.GrievanceError
	message := err.Error()
	if errors.As(err, &ge) {
		message = ge.Message
	}

	switch {
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrActorRequired):
		respondWithError(w, http.StatusBadRequest, "Validation error", message)
	case errors.Is(err, models.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found", message)
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrMissingDuplicateReference),
		errors.Is(err, models.ErrVersionConflict):
		respondWithError(w, http.StatusConflict, "Conflict", message)
	case errors.Is(err, models.ErrStoreUnavailable), errors.Is(err, models.ErrIndexUnavailable):
		log.Printf("[complaint] store unavailable: %v", err)
		respondWithError(w, http.StatusServiceUnavailable, "Service unavailable", "Please try again later")
	default:
		log.Printf("[complaint] internal error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal error", "Unexpected error")
	}
}

// decodeJSON reads a JSON request body, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request", "Failed to parse request body")
		return false
	}
	return true
}
