package handlers

import (
	"encoding/json"
	"net/http"

	"online-storefront/internal/models"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError translates the service error taxonomy into transport responses.
// Authorization errors never reveal whether the resource exists; signature
// errors never include the expected value.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case models.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case models.IsAuthorization(err):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "not authorized"})
	case models.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case models.IsSignature(err):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid signature"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
