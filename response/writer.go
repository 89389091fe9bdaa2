package response

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Result   any      `json:"result"`
	Messages []string `json:"messages"`
}

// WriteResponse will serialize result into the standard JSON envelope with HTTP 200
func WriteResponse(w http.ResponseWriter, r *http.Request, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(envelope{
		Result:   result,
		Messages: []string{},
	})
}

// WriteError will serialize the Error with its status code. Passing a non-*Error
// falls back to a generic 500 so handlers never leak internals by accident.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	respErr, ok := err.(*Error)
	if !ok {
		respErr = ErrUnexpected()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(respErr.StatusCode)
	json.NewEncoder(w).Encode(respErr)
}
