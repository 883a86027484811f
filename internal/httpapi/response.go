package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/uniportal/internship-portal/internal/apperr"
)

type errorBody struct {
	Error  string            `json:"error"`
	Code   apperr.Code       `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps an error code to its HTTP status.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeValidation:
		return http.StatusBadRequest
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {error, code, fields}. Internal errors never leak
// their message.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	body := errorBody{Error: "internal error", Code: code}

	var appErr *apperr.Error
	if code != apperr.CodeInternal && errors.As(err, &appErr) {
		body.Error = appErr.Message
		body.Fields = appErr.Fields
	}
	if code == apperr.CodeInternal {
		a.logger.Error("request failed", zapRequest(r, err)...)
	}
	writeJSON(w, statusFor(code), body)
}
