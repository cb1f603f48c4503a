// Package envelope writes the response body shared by every HTTP endpoint:
//
//	{"status": 200, "message": "Success", "result": ...}
//
// On failure status carries the error code and result is omitted.
package envelope

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/artpar/warpmodel/core/apperr"
)

// ContentType is the media type of every envelope.
const ContentType = "application/json"

// Body is the envelope document.
type Body struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// Write writes result with HTTP status code.
func Write(w http.ResponseWriter, code int, result any) {
	writeBody(w, code, Body{Status: http.StatusOK, Message: "Success", Result: result})
}

// WriteOK writes a 200 response.
func WriteOK(w http.ResponseWriter, result any) {
	Write(w, http.StatusOK, result)
}

// WriteError writes err. Coded errors keep their code and message; any
// other error is reported as an internal error without its text.
func WriteError(w http.ResponseWriter, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.New(apperr.InternalServerError, "Internal Server Error")
	}
	writeBody(w, StatusOf(e.Code), Body{Status: int(e.Code), Message: e.Message})
}

// StatusOf maps an error code to its HTTP status.
func StatusOf(code apperr.Code) int {
	switch code {
	case apperr.InvalidObjectKey, apperr.InvalidQuery:
		return http.StatusBadRequest
	case apperr.ObjectNotFound:
		return http.StatusNotFound
	case apperr.ForbiddenOperation:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeBody(w http.ResponseWriter, status int, body Body) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
