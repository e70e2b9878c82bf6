package models

// ErrorMessageResponse returns the error message response struct
type ErrorMessageResponse struct {
	Response MessageError
}

// MessageError contains the inner details for the error message response
type MessageError struct {
	Message string
	Error   string
}

// ErrorResponse is the structured body for expected domain failures
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// HealthCheckResponse returns the health check response duh
type HealthCheckResponse struct {
	Alive    bool `json:"alive"`
	Database bool `json:"database"`
}

// Error codes carried in ErrorResponse.Code
const (
	CodeMalformedToken        = "MALFORMED_TOKEN"
	CodeTokenNotFound         = "TOKEN_NOT_FOUND"
	CodeStoreUnavailable      = "STORE_UNAVAILABLE"
	CodeTokenAllocationFailed = "TOKEN_ALLOCATION_FAILED"
	CodeRateLimited           = "RATE_LIMITED"
	CodeValidation            = "VALIDATION_ERROR"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeRequestTimeout        = "REQUEST_TIMEOUT"
)
