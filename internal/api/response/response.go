// Package response writes the JSON envelopes returned by the report API.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Body is the envelope of a successful response.
type Body struct {
	Data interface{} `json:"data"`
}

// Problem is the envelope of a failed response. RequestID echoes the id set
// by middleware.RequestID so a failure can be found in the request log.
type Problem struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// write encodes v in full before the status line goes out.
func write(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(Problem{
			Error:   http.StatusText(status),
			Message: "failed to encode response",
			Code:    status,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// Success writes data with 200 OK.
func Success(w http.ResponseWriter, data interface{}) {
	write(w, http.StatusOK, Body{Data: data})
}

// Fail writes a Problem with status. Only msg reaches the client, so callers
// pass a fixed message rather than an internal error's text.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	p := Problem{
		Error:   http.StatusText(status),
		Message: msg,
		Code:    status,
	}
	if r != nil {
		p.RequestID = middleware.GetReqID(r.Context())
	}
	write(w, status, p)
}

// BadRequest writes a 400 Problem.
func BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	Fail(w, r, http.StatusBadRequest, msg)
}

// NotFound writes a 404 Problem.
func NotFound(w http.ResponseWriter, r *http.Request, msg string) {
	Fail(w, r, http.StatusNotFound, msg)
}

// InternalError writes a 500 Problem.
func InternalError(w http.ResponseWriter, r *http.Request, msg string) {
	Fail(w, r, http.StatusInternalServerError, msg)
}
