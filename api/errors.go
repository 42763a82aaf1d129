package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode is one of the fixed external error codes. Which internal check
// failed is never exposed through the code for trust-sensitive stages.
type ErrorCode string

const (
	CodeAuthRequired      ErrorCode = "DEVICE_AUTH_REQUIRED"
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeDeviceNotFound    ErrorCode = "DEVICE_NOT_FOUND"
	CodeDeviceUnverified  ErrorCode = "DEVICE_UNVERIFIED"
	CodeTimestampExpired  ErrorCode = "TIMESTAMP_EXPIRED"
	CodeTimestampInvalid  ErrorCode = "TIMESTAMP_INVALID"
	CodeReplayDetected    ErrorCode = "REPLAY_DETECTED"
	CodeSignatureInvalid  ErrorCode = "SIGNATURE_INVALID"
	CodeAttestationFailed ErrorCode = "ATTESTATION_FAILED"
	CodeTooManyRequests   ErrorCode = "TOO_MANY_REQUESTS"
)

var codeStatus = map[ErrorCode]int{
	CodeAuthRequired:      http.StatusUnauthorized,
	CodeValidation:        http.StatusBadRequest,
	CodeDeviceNotFound:    http.StatusUnauthorized,
	CodeDeviceUnverified:  http.StatusForbidden,
	CodeTimestampExpired:  http.StatusUnauthorized,
	CodeTimestampInvalid:  http.StatusUnauthorized,
	CodeReplayDetected:    http.StatusUnauthorized,
	CodeSignatureInvalid:  http.StatusUnauthorized,
	CodeAttestationFailed: http.StatusUnauthorized,
	CodeTooManyRequests:   http.StatusTooManyRequests,
}

// Status returns the HTTP status for the code.
func (c ErrorCode) Status() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
	Meta  ErrorMeta   `json:"meta"`
}

// ErrorDetail names the external error.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorMeta carries correlation data for support and internal log joins.
type ErrorMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// WriteError writes the error envelope with the code's HTTP status. The
// request id comes from the chi RequestID middleware.
func WriteError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.Status())
	_ = json.NewEncoder(w).Encode(ErrorBody{
		Error: ErrorDetail{Code: code, Message: message},
		Meta: ErrorMeta{
			RequestID: middleware.GetReqID(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
