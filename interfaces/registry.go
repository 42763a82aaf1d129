package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDeviceNotFound is returned when no device exists for the given id.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceExists is returned when inserting a device whose id is taken.
	ErrDeviceExists = errors.New("device already registered")

	// ErrCounterConflict is returned when a conditional counter update loses
	// against a concurrent writer. The caller must treat this as a replay.
	ErrCounterConflict = errors.New("counter update conflict")

	// ErrPublicKeyImmutable is returned when an update would replace an
	// already-set device public key.
	ErrPublicKeyImmutable = errors.New("device public key is immutable")

	// ErrTrustDowngrade is returned when an update would lower a device's
	// trust level.
	ErrTrustDowngrade = errors.New("trust level cannot be downgraded")

	// ErrArtifactNotFound is returned when no artifact is archived for the
	// given device.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInvalidLocationURI is returned for malformed artifact store URIs.
	ErrInvalidLocationURI = errors.New("invalid location URI")
)

// DeviceRegistry is the persistence contract for device records.
//
// Multi-instance deployments back this with an external store supporting
// atomic conditional updates; a single-instance deployment may use the
// in-process implementation from the registry package.
type DeviceRegistry interface {
	// FindDevice returns the device with the given id, or ErrDeviceNotFound.
	FindDevice(ctx context.Context, id uuid.UUID) (*Device, error)

	// InsertDevice stores a new device record.
	InsertDevice(ctx context.Context, device *Device) error

	// UpdateTrustAndKey upgrades a device after successful attestation,
	// persisting the trust level, public key, initial counter and captured
	// certificate chain. Implementations must reject trust downgrades and
	// public key replacement.
	UpdateTrustAndKey(ctx context.Context, id uuid.UUID, level TrustLevel, publicKey []byte, counter uint32, certChain []byte) error

	// UpdateCounterAndSeen advances the assertion counter from prev to next
	// and records the last-seen time. The update is conditional on the stored
	// counter still being prev; a lost race returns ErrCounterConflict so two
	// concurrent requests can never both succeed against the same prior
	// counter value.
	UpdateCounterAndSeen(ctx context.Context, id uuid.UUID, prev, next uint32, seenAt time.Time) error
}

// ArtifactStore archives write-once attestation artifacts (the verified
// vendor certificate chain) for audit, keyed by device id.
type ArtifactStore interface {
	// Store archives an artifact for the device.
	Store(ctx context.Context, id uuid.UUID, data []byte) error

	// Fetch retrieves a previously archived artifact, or ErrArtifactNotFound.
	Fetch(ctx context.Context, id uuid.UUID) ([]byte, error)

	// LocationURI identifies this store for logs and diagnostics.
	LocationURI() string
}
