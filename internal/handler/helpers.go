package handler

import (
	"encoding/json"
	"net/http"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// resultStatusCode maps a typed ingestion outcome to an HTTP status.
// Skips are not errors: the at-least-once transport should not re-deliver
// them, so they answer 200.
func resultStatusCode(result *domain.IngestResult) int {
	switch result.Status {
	case domain.StatusCommitted:
		return http.StatusCreated
	case domain.StatusSkipped:
		return http.StatusOK
	case domain.StatusRejected:
		if result.Reason == domain.ReasonParseError {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
