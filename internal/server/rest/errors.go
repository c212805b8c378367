package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

type messageResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode,omitempty"`
	Status     string `json:"status,omitempty"`
}

// badRequest lists the errors whose message is safe to show the caller.
var badRequest = []error{
	common.ErrValidation,
	common.ErrDuplicateCredential,
	common.ErrInvalidCredentials,
	common.ErrTokenExpiredOrInvalid,
	common.ErrInvalidOrUsedToken,
	common.ErrPasswordMismatch,
	common.ErrSamePassword,
	common.ErrUploadFailed,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg, StatusCode: status, Status: "error"})
}

// writeError maps a workflow error onto a status code. Unknown errors are
// logged and reported as a generic 500.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	switch {
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		writeMessage(w, http.StatusUnauthorized, "Authentication is required to access this route.")
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
