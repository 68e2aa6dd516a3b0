// Package api holds the wire shapes shared by every HTTP surface of the service.
package api

import "net/http"

// ErrorResponse is the single error shape rendered by this service:
//
//	{"success": false, "error": "Phone number is required"}
//
// It implements huma.StatusError so handlers can return it directly.
type ErrorResponse struct {
	Success bool   `json:"success" doc:"Always false for errors"`
	Message string `json:"error"   doc:"Human readable error message" example:"Invalid phone number format"`

	status int
}

// NewError builds an ErrorResponse for status. An empty message falls back to
// the HTTP status text.
func NewError(status int, msg string) *ErrorResponse {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ErrorResponse{Message: msg, status: status}
}

func (e *ErrorResponse) Error() string {
	return e.Message
}

// GetStatus returns the HTTP status code of the error.
func (e *ErrorResponse) GetStatus() int {
	if e.status == 0 {
		return http.StatusInternalServerError
	}
	return e.status
}
