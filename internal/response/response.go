package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the standard error envelope for API responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, code, message, hint string) {
	JSON(w, status, ErrorBody{Code: code, Message: message, Hint: hint})
}
