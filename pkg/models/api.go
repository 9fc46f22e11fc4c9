package models

// ErrorType classifies an API error for clients.
type ErrorType string

const (
	ValidationErrorType ErrorType = "ValidationError"
	NotFoundErrorType   ErrorType = "NotFoundError"
	UpstreamErrorType   ErrorType = "UpstreamError"
	GeneralErrorType    ErrorType = "GeneralError"
)

// APIResponse is the envelope for the server's non-relay endpoints and for
// every error response.
type APIResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	ErrorType ErrorType `json:"error_type,omitempty"`
	Data      any       `json:"data,omitempty"`
}
