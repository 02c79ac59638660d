package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"mercator-hq/callisto/pkg/ledger"
	"mercator-hq/callisto/pkg/policy"
)

// errorBody is the JSON error envelope returned by all API endpoints.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// writeStoreError maps domain errors onto HTTP statuses: not-found to
// 404, validation failures to 400, everything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	var notFound *policy.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
		return
	}

	var policyValidation *policy.ValidationError
	if errors.As(err, &policyValidation) {
		writeError(w, http.StatusBadRequest, "validation_failed", policyValidation.Error())
		return
	}

	var recordValidation *ledger.ValidationError
	if errors.As(err, &recordValidation) {
		writeError(w, http.StatusBadRequest, "validation_failed", recordValidation.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}
