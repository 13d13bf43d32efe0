package models

import (
	"encoding/json"
	"net/http"
	"time"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusWaiting = "waiting"
)

// Error codes let the dashboard tell failures apart without parsing messages.
const (
	CodeInvalidInput       = "invalid_input"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeChannelUnavailable = "channel_unavailable"
	CodeInternal           = "internal"
)

// APIResponse is the envelope every HTTP endpoint answers with.
type APIResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Code      string      `json:"code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"-"`
}

func (r *APIResponse) MarshalJSON() ([]byte, error) {
	type Alias APIResponse
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(r),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
	})
}

func NewSuccessResponse(message string, data interface{}) *APIResponse {
	return &APIResponse{
		Status:    StatusSuccess,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func NewErrorResponse(code, message string) *APIResponse {
	return &APIResponse{
		Status:    StatusError,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewWaitingResponse answers requests whose result is not available yet,
// like a pairing QR code that has not been generated.
func NewWaitingResponse(message string) *APIResponse {
	return &APIResponse{
		Status:    StatusWaiting,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func RespondWithJSON(w http.ResponseWriter, statusCode int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
