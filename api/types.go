package api

import "time"

// Per-request authentication headers.
const (
	// DeviceIDHeader carries the device UUID assigned at registration.
	DeviceIDHeader = "X-Device-Id"

	// TimestampHeader carries the request timestamp as integer unix
	// milliseconds.
	TimestampHeader = "X-Device-Timestamp"

	// SignatureHeader carries the base64-encoded CBOR assertion.
	SignatureHeader = "X-Device-Signature"
)

// ChallengeResponse is the challenge issuance response.
type ChallengeResponse struct {
	// Challenge is base64 (standard encoding) of the 32 challenge bytes.
	Challenge string `json:"challenge"`

	// ExpiresAt is the RFC3339 expiry of the challenge.
	ExpiresAt time.Time `json:"expires_at"`
}

// AttestationPayload is the attestation section of a registration request.
type AttestationPayload struct {
	// KeyID is base64 of the hardware key identifier.
	KeyID string `json:"key_id"`

	// AttestationObject is base64 of the CBOR attestation container.
	AttestationObject string `json:"attestation_object"`

	// Challenge is base64 of the previously issued challenge bytes.
	Challenge string `json:"challenge"`
}

// RegisterRequest is the device registration request body.
type RegisterRequest struct {
	Platform string `json:"platform"`
	Model    string `json:"model"`
	HasLidar bool   `json:"has_lidar"`

	// Attestation is optional: devices without it register as unverified.
	Attestation *AttestationPayload `json:"attestation,omitempty"`
}

// RegisterResponse reports the registered device identity and trust level.
type RegisterResponse struct {
	DeviceID   string `json:"device_id"`
	TrustLevel string `json:"trust_level"`
}
