package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response body shared by every JSON endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK wraps data in a successful envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{
		Success: true,
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// Fail sends an unsuccessful envelope with message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{
		Success: false,
		Status:  status,
		Message: message,
	})
}

// DecodeJSON decodes the request body into target, rejecting unknown fields.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}
