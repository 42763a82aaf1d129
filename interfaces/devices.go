package interfaces

import (
	"time"

	"github.com/google/uuid"
)

// TrustLevel is a device's verification state.
type TrustLevel string

const (
	// TrustUnverified is the initial state of every registered device. It is
	// an expected, recoverable state: unverified devices continue to be
	// served on permissive routes.
	TrustUnverified TrustLevel = "unverified"

	// TrustHardwareVerified means the device's attestation was validated
	// against the vendor certificate chain. Transitions only happen
	// Unverified -> HardwareVerified, never back.
	TrustHardwareVerified TrustLevel = "hardware_verified"
)

// Valid reports whether the trust level is one of the known values.
func (t TrustLevel) Valid() bool {
	return t == TrustUnverified || t == TrustHardwareVerified
}

// Device is a registered piece of client hardware.
type Device struct {
	ID       uuid.UUID
	Platform string
	Model    string
	HasLidar bool

	// PublicKey is the PKIX DER encoding of the device's hardware-backed
	// ECDSA P-256 key. Nil until a successful attestation; immutable after.
	PublicKey []byte

	// Counter is the last accepted assertion counter. Must strictly increase
	// across accepted requests.
	Counter uint32

	TrustLevel TrustLevel

	// CertificateChain is the PEM-encoded vendor chain captured at
	// attestation time.
	CertificateChain []byte

	CreatedAt  time.Time
	LastSeenAt time.Time
}

// IsVerified reports whether the device passed hardware attestation.
func (d *Device) IsVerified() bool {
	return d.TrustLevel == TrustHardwareVerified
}

// DeviceContext is the per-request identity attached for downstream handlers.
// It is owned by the request scope and never persisted.
type DeviceContext struct {
	DeviceID   uuid.UUID
	TrustLevel TrustLevel
	IsVerified bool
	HasLidar   bool
}
