package ops

import (
	"encoding/json"
	"net/http"
)

// WriteJSON renders data as the response body with the given status.
// The Content-Type header has to land before the status line does.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Nothing useful to do with an encode failure after headers are out.
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse pairs a machine-readable code with a human-readable
// message, the same split the command responses use.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError renders an errorResponse with the given status.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}
